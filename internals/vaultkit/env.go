package vaultkit

import (
	"context"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/clip"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/client"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
	"github.com/vaultkit/vaultkit-cli/internals/settings"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// AgentClient controls a running agent.
type AgentClient interface {
	EnsureRunning(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Status(ctx context.Context) (*protocol.StatusResponse, error)
	Unlock(ctx context.Context, account, passphrase string) error
	Lock(ctx context.Context, account string) ([]string, error)
	Switch(ctx context.Context, account string) error
}

// Env gives commands access to the profile directory and its contents.
type Env struct {
	io      ui.IO
	logger  cli.Logger
	profile *ProfileDirFlag
	pass    *PassphraseFlag

	keyring   Keyring
	cleaner   KeyringCleaner
	clipper   clip.Clipper
	newClient func(dir ProfileDir) AgentClient

	// workFactor overrides the scrypt work factor of new vault files.
	workFactor int
}

func (e *Env) Dir() (ProfileDir, error) {
	return e.profile.Dir()
}

// Store returns the store of the vault files.
func (e *Env) Store() (*vault.Store, error) {
	dir, err := e.Dir()
	if err != nil {
		return nil, err
	}
	store := vault.NewStore(dir.VaultsDir())
	if e.workFactor > 0 {
		store.SetWorkFactor(e.workFactor)
	}
	return store, nil
}

// Settings returns the settings file.
func (e *Env) Settings() (*settings.File, error) {
	dir, err := e.Dir()
	if err != nil {
		return nil, err
	}
	return settings.NewFile(dir.String()), nil
}

// Account returns name when it is set and the active account otherwise.
func (e *Env) Account(name string) (string, error) {
	if name != "" {
		return name, vault.ValidateAccountName(name)
	}

	s, err := e.Settings()
	if err != nil {
		return "", err
	}
	active, err := s.ActiveAccount()
	if err != nil {
		return "", err
	}
	if active == "" {
		return "", ErrNoActiveAccount
	}
	return active, nil
}

// Client returns a client for the agent of the profile.
func (e *Env) Client() (AgentClient, error) {
	dir, err := e.Dir()
	if err != nil {
		return nil, err
	}
	if e.newClient != nil {
		return e.newClient(dir), nil
	}
	return client.New(dir.String(), Version), nil
}

// Clipper returns the clipboard to copy values to.
func (e *Env) Clipper() clip.Clipper {
	if e.clipper != nil {
		return e.clipper
	}
	return clip.NewClipboard()
}

func (e *Env) passphraseReader(account string) *passphraseReader {
	kr := e.keyring
	if kr == nil {
		kr = NewKeyring()
	}
	cleaner := e.cleaner
	if cleaner == nil {
		cleaner = NewKeyringCleaner()
	}
	return &passphraseReader{
		io:        e.io,
		account:   account,
		FlagValue: e.pass.value,
		Cache:     NewPassphraseCache(account, e.pass.ttl, cleaner, kr),
	}
}

// OpenVault decrypts the vault of account, asking for its passphrase.
func (e *Env) OpenVault(account string) (*vault.Store, *vault.Vault, error) {
	store, err := e.Store()
	if err != nil {
		return nil, nil, err
	}
	if !store.Exists(account) {
		return nil, nil, vault.ErrAccountNotFound(account)
	}

	var v *vault.Vault
	err = withPassphrase(e.passphraseReader(account), func(passphrase string) error {
		var err error
		v, err = store.Open(account, passphrase)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return store, v, nil
}
