package vaultkit

import (
	"time"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/client"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// maxPassphraseTries is how often the user may enter a wrong passphrase.
const maxPassphraseTries = 3

// PassphraseFlag holds the global passphrase flags.
type PassphraseFlag struct {
	value string
	ttl   time.Duration
}

// Register registers the flags on the app.
func (f *PassphraseFlag) Register(app *cli.App) {
	app.PersistentFlags().StringVar(&f.value, "passphrase", "", "The passphrase of the vault. "+
		"Only use this when you cannot be asked for it, e.g. when input or output is piped.")
	app.PersistentFlags().DurationVar(&f.ttl, "passphrase-ttl", 0, "Cache the passphrase of the vault in the OS keyring for this duration. "+
		"The duration is reset every time the passphrase is read. Set to 0 to disable.")
}

// passphraseReader provides passphrase reading capability to the CLI.
type passphraseReader struct {
	tries     int
	hasAsked  bool
	io        ui.IO
	account   string
	FlagValue string
	Cache     *PassphraseCache
}

// Read returns the next passphrase to try. When the previous one was
// wrong, the cached passphrase is removed first.
func (pr *passphraseReader) Read() (string, error) {
	defer func() { pr.tries++ }()

	if pr.tries > 0 {
		_ = pr.Cache.Delete()
	}

	passphrase, err := pr.get()
	if err != nil {
		_ = pr.Cache.Delete()
		return "", err
	}
	return passphrase, nil
}

// get returns the passphrase of the vault. It retrieves the passphrase
// from the following sources in order of preference:
//  1. The value provided by a flag.
//  2. PassphraseCache
//  3. Input typed in by the user.
func (pr *passphraseReader) get() (string, error) {
	if pr.FlagValue != "" {
		if pr.tries == 0 {
			return pr.FlagValue, nil
		}
		return "", vault.ErrWrongPassphrase
	}

	if pr.tries == 0 && pr.Cache.IsEnabled() {
		passphrase, err := pr.Cache.Get()
		if err != nil && err != ErrKeyringItemNotFound {
			return "", err
		} else if err == nil {
			return passphrase, nil
		}
	}

	var err error
	var passphrase string
	if pr.hasAsked {
		passphrase, err = ui.AskSecret(pr.io, "Incorrect passphrase, try again: ")
	} else {
		passphrase, err = ui.AskSecret(pr.io, "Passphrase for "+pr.account+": ")
	}
	if err == ui.ErrCannotAsk {
		return "", ErrPassphraseFlagNotSet
	} else if err != nil {
		return "", err
	}

	pr.hasAsked = true
	return passphrase, nil
}

// remember caches a passphrase that turned out to be correct.
func (pr *passphraseReader) remember(passphrase string) error {
	if pr.FlagValue != "" || !pr.Cache.IsEnabled() || passphrase == "" {
		return nil
	}
	return pr.Cache.Set(passphrase)
}

// withPassphrase calls fn with passphrases from pr until fn accepts one.
func withPassphrase(pr *passphraseReader, fn func(passphrase string) error) error {
	for i := 0; i < maxPassphraseTries; i++ {
		passphrase, err := pr.Read()
		if err != nil {
			return err
		}

		err = fn(passphrase)
		if err == vault.ErrWrongPassphrase || err == client.ErrWrongPassphrase {
			continue
		} else if err != nil {
			return err
		}
		return pr.remember(passphrase)
	}
	return vault.ErrWrongPassphrase
}
