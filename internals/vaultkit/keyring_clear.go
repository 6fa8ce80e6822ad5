package vaultkit

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
)

// KeyringCommand manages the passphrases cached in the OS keyring.
type KeyringCommand struct {
	env *Env
}

// NewKeyringCommand creates a new KeyringCommand.
func NewKeyringCommand(env *Env) *KeyringCommand {
	return &KeyringCommand{
		env: env,
	}
}

// Register registers the command and its sub-commands on the provided Registerer.
func (cmd *KeyringCommand) Register(r cli.Registerer) {
	clause := r.Command("keyring", "Manage the passphrases cached in the OS keyring.").Hidden()
	NewKeyringClearCommand(cmd.env).Register(clause)
}

// KeyringClearCommand waits for the keyring item of an account to expire
// and clears it. If the process receives a kill signal it will
// delete the keyring item and stop.
type KeyringClearCommand struct {
	env     *Env
	account cli.StringValue
	now     bool
}

// NewKeyringClearCommand creates a new KeyringClearCommand.
func NewKeyringClearCommand(env *Env) *KeyringClearCommand {
	return &KeyringClearCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *KeyringClearCommand) Register(r cli.Registerer) {
	clause := r.Command("clear", "Clear the passphrase of an account from the keyring once it expires.")
	clause.Flags().BoolVar(&cmd.now, "now", false, "Clear the passphrase without waiting for it to expire.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.account, Name: "account", Required: true, Description: "The account whose passphrase to clear."}})
}

func (cmd *KeyringClearCommand) keyring() Keyring {
	if cmd.env.keyring != nil {
		return cmd.env.keyring
	}
	return NewKeyring()
}

// Run waits for the keyring item to expire and clears it.
// If the process receives a kill signal it will delete the
// keyring item and stop.
func (cmd *KeyringClearCommand) Run() error {
	keyring := cmd.keyring()
	account := cmd.account.Param

	if cmd.now {
		err := keyring.Delete(account)
		if err == ErrKeyringItemNotFound {
			return nil
		}
		return err
	}

	item, err := keyring.Get(account)
	if err == ErrKeyringItemNotFound {
		// Passphrase already cleared.
		return nil
	} else if err != nil {
		return err
	}

	item.RunningCleanupProcess = true
	err = keyring.Set(account, item)
	if err != nil {
		return err
	}

	kill := make(chan os.Signal, 1)
	signal.Notify(kill,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGABRT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	defer signal.Stop(kill)

	wait := 0 * time.Second

	for {
		select {
		case <-kill:
			return keyring.Delete(account)
		case <-time.After(wait):
			item, err := keyring.Get(account)
			if err == ErrKeyringItemNotFound {
				return nil
			} else if err != nil {
				return err
			}

			if item.IsExpired() {
				err := keyring.Delete(account)
				if err == ErrKeyringItemNotFound {
					return nil
				}
				return err
			}

			wait = time.Until(item.ExpiresAt) + 10*time.Millisecond
		}
	}
}
