package vaultkit

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
)

const (
	// defaultProfileDirName is the default name for the vaultkit profile directory.
	defaultProfileDirName = ".vaultkit"
	// vaultsDirName is the directory holding one vault file per account.
	vaultsDirName = "vaults"
	// agentSocketName is the socket the SSH agent listens on.
	agentSocketName = "ssh-agent.sock"
	// defaultProfileDirFileMode is the filemode to assign to the configuration directory.
	defaultProfileDirFileMode = os.FileMode(0700)
)

// ProfileDir points to the directory used for storing vaults and configuration.
type ProfileDir string

// NewProfileDir constructs the profile directory location, defaulting to ~/.vaultkit
// when no path is given. Given paths must be absolute. Note that while the returned path is absolute,
// it is not guaranteed that the returned path actually exists.
func NewProfileDir(path string) (ProfileDir, error) {
	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", ErrCannotFindHomeDir(err)
		}
		path = filepath.Join(home, defaultProfileDirName)
	}

	if !filepath.IsAbs(path) {
		return "", ErrInvalidConfigDirFlag
	}

	return ProfileDir(path), nil
}

// VaultsDir returns the directory holding the vault files.
func (d ProfileDir) VaultsDir() string {
	return filepath.Join(string(d), vaultsDirName)
}

// AgentSocket returns the default path of the SSH agent socket.
func (d ProfileDir) AgentSocket() string {
	return filepath.Join(string(d), agentSocketName)
}

// AgentLog returns the log file of an agent running in the background.
func (d ProfileDir) AgentLog() string {
	return filepath.Join(string(d), protocol.LogFileName)
}

// Ensure creates the directory when it does not exist yet.
func (d ProfileDir) Ensure() error {
	return os.MkdirAll(string(d), d.FileMode())
}

// FileMode returns the file mode used for the profile directory.
func (d ProfileDir) FileMode() os.FileMode {
	return defaultProfileDirFileMode
}

func (d ProfileDir) String() string { return string(d) }

// ProfileDirFlag is the --config-dir flag.
type ProfileDirFlag struct {
	path string
}

// Register registers the flag on the app.
func (f *ProfileDirFlag) Register(app *cli.App) {
	app.PersistentFlags().StringVar(&f.path, "config-dir", "", "The absolute path to a custom configuration directory. Defaults to ~/"+defaultProfileDirName)
}

// Dir returns the profile directory the flag points to.
func (f *ProfileDirFlag) Dir() (ProfileDir, error) {
	return NewProfileDir(f.path)
}
