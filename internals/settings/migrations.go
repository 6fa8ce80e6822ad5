package settings

import (
	"fmt"

	"github.com/vaultkit/vaultkit-cli/internals/cli/configuration"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
)

type migration func(configuration.ConfigMap) (configuration.ConfigMap, error)

// migrations[i] upgrades a settings file from version i+1 to version i+2.
var migrations = []migration{
	migrateV1ToV2,
}

func migrate(m configuration.ConfigMap, version int) (configuration.ConfigMap, error) {
	var err error
	for v := version; v < currentVersion; v++ {
		m, err = migrations[v-1](m)
		if err != nil {
			return nil, fmt.Errorf("migrating from version %d: %s", v, err)
		}
	}
	return m, nil
}

// migrateV1ToV2 replaces the boolean ssh_agent_prompt with ssh_agent_prompt_behavior.
func migrateV1ToV2(m configuration.ConfigMap) (configuration.ConfigMap, error) {
	res := configuration.ConfigMap{}
	for k, v := range m {
		res[k] = v
	}
	res["version"] = 2

	prompt, ok := m["ssh_agent_prompt"]
	if !ok {
		return res, nil
	}
	delete(res, "ssh_agent_prompt")

	enabled, ok := prompt.(bool)
	if !ok {
		return nil, fmt.Errorf("ssh_agent_prompt has wrong type %T (actual) != bool (expected)", prompt)
	}
	if enabled {
		res["ssh_agent_prompt_behavior"] = string(sshagent.PromptAlways)
	} else {
		res["ssh_agent_prompt_behavior"] = string(sshagent.PromptNever)
	}
	return res, nil
}
