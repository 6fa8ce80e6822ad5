package vaultkit

import (
	"context"
	"fmt"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// UnlockCommand unlocks the vault of an account in the agent.
type UnlockCommand struct {
	env     *Env
	account cli.StringValue
}

// NewUnlockCommand creates a new UnlockCommand.
func NewUnlockCommand(env *Env) *UnlockCommand {
	return &UnlockCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *UnlockCommand) Register(r cli.Registerer) {
	clause := r.Command("unlock", "Unlock a vault so the agent can serve its SSH keys. The agent is started when it is not running.")
	clause.HelpLong("Unlock asks for the passphrase of the vault and hands it to the agent. " +
		"Pending SSH requests that wait for an unlock continue as soon as the active account is unlocked.\n\n" +
		"Use --passphrase-ttl to cache the passphrase in the OS keyring.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.account, Name: "account", Required: false, Description: "The account to unlock. Defaults to the active account."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *UnlockCommand) Run() error {
	account, err := cmd.env.Account(cmd.account.Param)
	if err != nil {
		return err
	}
	store, err := cmd.env.Store()
	if err != nil {
		return err
	}
	if !store.Exists(account) {
		return vault.ErrAccountNotFound(account)
	}

	c, err := cmd.env.Client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	err = c.EnsureRunning(ctx)
	if err != nil {
		return err
	}

	err = withPassphrase(cmd.env.passphraseReader(account), func(passphrase string) error {
		return c.Unlock(ctx, account, passphrase)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.env.io.Output(), "Unlocked %s.\n", account)
	return nil
}
