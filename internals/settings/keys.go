package settings

import (
	"sort"
	"strconv"

	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
)

// Keys that can be read and written with Get and Set.
const (
	KeySSHAgentEnabled = "ssh_agent_enabled"
	KeyPromptBehavior  = "ssh_agent_prompt_behavior"
	KeyActiveAccount   = "active_account"
)

// Keys returns all settable keys, sorted.
func Keys() []string {
	keys := []string{KeySSHAgentEnabled, KeyPromptBehavior, KeyActiveAccount}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a setting as a string.
func (s Settings) Get(key string) (string, error) {
	switch key {
	case KeySSHAgentEnabled:
		return strconv.FormatBool(s.SSHAgentEnabled), nil
	case KeyPromptBehavior:
		return string(s.SSHAgentPromptBehavior), nil
	case KeyActiveAccount:
		return s.ActiveAccount, nil
	default:
		return "", ErrUnknownKey(key)
	}
}

// Set parses value and assigns it to the setting.
func (s *Settings) Set(key, value string) error {
	switch key {
	case KeySSHAgentEnabled:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return ErrInvalidValue(value, key)
		}
		s.SSHAgentEnabled = enabled
	case KeyPromptBehavior:
		behavior := sshagent.PromptBehavior(value)
		if !behavior.Valid() {
			return ErrInvalidValue(value, key)
		}
		s.SSHAgentPromptBehavior = behavior
	case KeyActiveAccount:
		s.ActiveAccount = value
	default:
		return ErrUnknownKey(key)
	}
	return nil
}
