package vaultkit

import (
	"strings"
	"testing"

	"gotest.tools/assert"

	"github.com/vaultkit/vaultkit-cli/internals/settings"
)

func TestConfigSetCommand_Run(t *testing.T) {
	cases := map[string]struct {
		key   string
		value string
		err   error
	}{
		"enable agent": {
			key:   settings.KeySSHAgentEnabled,
			value: "true",
		},
		"prompt behavior": {
			key:   settings.KeyPromptBehavior,
			value: "never",
		},
		"unknown key": {
			key:   "colour",
			value: "blue",
			err:   settings.ErrUnknownKey("colour"),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)

			set := NewConfigSetCommand(env.Env)
			set.key.Param = tc.key
			set.value.Param = tc.value
			err := set.Run()

			if tc.err != nil {
				assert.Error(t, err, tc.err.Error())
				return
			}
			assert.NilError(t, err)

			get := NewConfigGetCommand(env.Env)
			get.key.Param = tc.key
			err = get.Run()
			assert.NilError(t, err)
			assert.Equal(t, env.io.Out.String(), tc.value+"\n")
		})
	}
}

func TestConfigLsCommand_Run(t *testing.T) {
	env := newTestEnv(t)

	err := NewConfigLsCommand(env.Env).Run()

	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(env.io.Out.String()), "\n")
	assert.Equal(t, len(lines), len(settings.Keys())+1)
	assert.Assert(t, strings.HasPrefix(lines[0], "KEY"))
}
