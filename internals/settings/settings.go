// Package settings persists the user preferences of vaultkit.
package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/secrethub/secrethub-go/internals/errio"

	"github.com/vaultkit/vaultkit-cli/internals/cli/configuration"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
)

const (
	// FileName is the name of the settings file in the profile directory.
	FileName = "settings.yml"

	currentVersion = 2
)

// Errors
var (
	errSettings = errio.Namespace("settings")

	ErrUnknownKey      = errSettings.Code("unknown_key").ErrorPref("unknown setting %s")
	ErrInvalidValue    = errSettings.Code("invalid_value").ErrorPref("invalid value %q for setting %s")
	ErrVersionTooNew   = errSettings.Code("version_too_new").ErrorPref("settings file version %d is newer than this version of vaultkit supports")
	ErrInvalidVersion  = errSettings.Code("invalid_version").ErrorPref("version %d does not exist, versions start at 1")
	ErrInvalidSettings = errSettings.Code("invalid_settings").ErrorPref("settings file %s is invalid: %s")
)

// Settings is the content of the settings file.
type Settings struct {
	Version                int                     `yaml:"version"`
	SSHAgentEnabled        bool                    `yaml:"ssh_agent_enabled"`
	SSHAgentPromptBehavior sshagent.PromptBehavior `yaml:"ssh_agent_prompt_behavior"`
	ActiveAccount          string                  `yaml:"active_account,omitempty"`
}

// Default returns the settings used when no settings file exists.
func Default() Settings {
	return Settings{
		Version:                currentVersion,
		SSHAgentEnabled:        false,
		SSHAgentPromptBehavior: sshagent.PromptAlways,
	}
}

// File reads and writes the settings file. Every read goes to disk, so
// changes made by other processes are seen immediately.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns the settings file in the given profile directory.
func NewFile(profileDir string) *File {
	return &File{
		path: filepath.Join(profileDir, FileName),
	}
}

// Path returns the location of the settings file.
func (f *File) Path() string {
	return f.path
}

// Load reads the settings, migrating older versions of the file.
func (f *File) Load() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (Settings, error) {
	m, err := configuration.ReadMapFromFile(f.path)
	if err == configuration.ErrFileNotFound {
		return Default(), nil
	} else if err != nil {
		return Settings{}, ErrInvalidSettings(f.path, err)
	}

	version, err := m.GetVersion()
	if err != nil {
		return Settings{}, ErrInvalidSettings(f.path, err)
	}
	if version < 1 {
		return Settings{}, ErrInvalidSettings(f.path, ErrInvalidVersion(version))
	}
	if version > currentVersion {
		return Settings{}, ErrVersionTooNew(version)
	}
	m, err = migrate(m, version)
	if err != nil {
		return Settings{}, ErrInvalidSettings(f.path, err)
	}

	s := Default()
	err = configuration.ParseMap(m, &s)
	if err != nil {
		return Settings{}, ErrInvalidSettings(f.path, err)
	}
	if !s.SSHAgentPromptBehavior.Valid() {
		return Settings{}, ErrInvalidSettings(f.path, ErrInvalidValue(string(s.SSHAgentPromptBehavior), KeyPromptBehavior))
	}
	return s, nil
}

// Update loads the settings, applies fn and writes the result.
func (f *File) Update(fn func(*Settings) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.load()
	if err != nil {
		return err
	}
	err = fn(&s)
	if err != nil {
		return err
	}
	s.Version = currentVersion
	return configuration.WriteToFile(s, f.path, os.FileMode(0600))
}

// SSHAgentEnabled reports whether the SSH agent may serve keys.
func (f *File) SSHAgentEnabled(ctx context.Context) (bool, error) {
	s, err := f.Load()
	if err != nil {
		return false, err
	}
	return s.SSHAgentEnabled, nil
}

// PromptBehavior returns when the SSH agent asks for approval.
func (f *File) PromptBehavior(ctx context.Context) (sshagent.PromptBehavior, error) {
	s, err := f.Load()
	if err != nil {
		return "", err
	}
	return s.SSHAgentPromptBehavior, nil
}

// ActiveAccount returns the account that was last switched to.
func (f *File) ActiveAccount() (string, error) {
	s, err := f.Load()
	if err != nil {
		return "", err
	}
	return s.ActiveAccount, nil
}

// SetActiveAccount stores the account to use by default.
func (f *File) SetActiveAccount(account string) error {
	return f.Update(func(s *Settings) error {
		s.ActiveAccount = account
		return nil
	})
}
