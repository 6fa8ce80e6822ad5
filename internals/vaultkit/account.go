package vaultkit

import (
	"context"
	"fmt"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// AccountCommand handles operations on vaultkit accounts.
type AccountCommand struct {
	env *Env
}

// NewAccountCommand creates a new AccountCommand.
func NewAccountCommand(env *Env) *AccountCommand {
	return &AccountCommand{
		env: env,
	}
}

// Register registers the command and its sub-commands on the provided Registerer.
func (cmd *AccountCommand) Register(r cli.Registerer) {
	clause := r.Command("account", "Manage your accounts.")
	NewAccountInitCommand(cmd.env).Register(clause)
	NewAccountLsCommand(cmd.env).Register(clause)
	NewAccountSwitchCommand(cmd.env).Register(clause)
	NewAccountPasswdCommand(cmd.env).Register(clause)
}

// AccountInitCommand creates the vault of a new account.
type AccountInitCommand struct {
	env  *Env
	name cli.StringValue
}

// NewAccountInitCommand creates a new AccountInitCommand.
func NewAccountInitCommand(env *Env) *AccountInitCommand {
	return &AccountInitCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *AccountInitCommand) Register(r cli.Registerer) {
	clause := r.Command("init", "Create a new account with an empty vault.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.name, Name: "name", Required: true, Description: "The name of the account."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *AccountInitCommand) Run() error {
	name := cmd.name.Param
	err := vault.ValidateAccountName(name)
	if err != nil {
		return err
	}

	store, err := cmd.env.Store()
	if err != nil {
		return err
	}
	if store.Exists(name) {
		return vault.ErrAccountExists(name)
	}

	passphrase := cmd.env.pass.value
	if passphrase == "" {
		passphrase, err = ui.AskPassphrase(cmd.env.io, "Choose a passphrase for the vault: ", "Enter the passphrase again: ", 3)
		if err == ui.ErrCannotAsk {
			return ErrPassphraseFlagNotSet
		} else if err != nil {
			return err
		}
	}

	_, err = store.Create(name, passphrase)
	if err != nil {
		return err
	}

	s, err := cmd.env.Settings()
	if err != nil {
		return err
	}
	active, err := s.ActiveAccount()
	if err != nil {
		return err
	}
	if active == "" {
		err = s.SetActiveAccount(name)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.env.io.Output(), "Created account %s.\n", name)
	return nil
}

// AccountLsCommand lists the accounts.
type AccountLsCommand struct {
	env *Env
}

// NewAccountLsCommand creates a new AccountLsCommand.
func NewAccountLsCommand(env *Env) *AccountLsCommand {
	return &AccountLsCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *AccountLsCommand) Register(r cli.Registerer) {
	clause := r.Command("ls", "List all accounts. The active account is marked with a *.")
	clause.Alias("list")
	clause.BindAction(cmd.Run)
	clause.BindArguments(nil)
}

// Run handles the command with the options as specified in the command.
func (cmd *AccountLsCommand) Run() error {
	store, err := cmd.env.Store()
	if err != nil {
		return err
	}
	accounts, err := store.Accounts()
	if err != nil {
		return err
	}

	s, err := cmd.env.Settings()
	if err != nil {
		return err
	}
	active, err := s.ActiveAccount()
	if err != nil {
		return err
	}

	for _, account := range accounts {
		marker := " "
		if account == active {
			marker = "*"
		}
		fmt.Fprintf(cmd.env.io.Output(), "%s %s\n", marker, account)
	}
	return nil
}

// AccountSwitchCommand changes the active account.
type AccountSwitchCommand struct {
	env  *Env
	name cli.StringValue
}

// NewAccountSwitchCommand creates a new AccountSwitchCommand.
func NewAccountSwitchCommand(env *Env) *AccountSwitchCommand {
	return &AccountSwitchCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *AccountSwitchCommand) Register(r cli.Registerer) {
	clause := r.Command("switch", "Make another account the active account. The SSH agent serves the keys of the active account.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.name, Name: "name", Required: true, Description: "The name of the account."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *AccountSwitchCommand) Run() error {
	name := cmd.name.Param
	err := vault.ValidateAccountName(name)
	if err != nil {
		return err
	}

	store, err := cmd.env.Store()
	if err != nil {
		return err
	}
	if !store.Exists(name) {
		return vault.ErrAccountNotFound(name)
	}

	c, err := cmd.env.Client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if _, err := c.Version(ctx); err == nil {
		// The agent stores the choice in the settings itself.
		err = c.Switch(ctx, name)
		if err != nil {
			return err
		}
	} else {
		s, err := cmd.env.Settings()
		if err != nil {
			return err
		}
		err = s.SetActiveAccount(name)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.env.io.Output(), "Switched to account %s.\n", name)
	return nil
}

// AccountPasswdCommand changes the passphrase of a vault.
type AccountPasswdCommand struct {
	env     *Env
	account cli.StringValue
}

// NewAccountPasswdCommand creates a new AccountPasswdCommand.
func NewAccountPasswdCommand(env *Env) *AccountPasswdCommand {
	return &AccountPasswdCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *AccountPasswdCommand) Register(r cli.Registerer) {
	clause := r.Command("passwd", "Change the passphrase of a vault.")
	clause.HelpLong("The current passphrase is read like for any other command, so it can come from the --passphrase flag. " +
		"The new passphrase is always asked for. A vault that is unlocked in the agent stays unlocked.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.account, Name: "account", Required: false, Description: "The account whose passphrase to change. Defaults to the active account."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *AccountPasswdCommand) Run() error {
	account, err := cmd.env.Account(cmd.account.Param)
	if err != nil {
		return err
	}
	store, v, err := cmd.env.OpenVault(account)
	if err != nil {
		return err
	}

	passphrase, err := ui.AskPassphrase(cmd.env.io, "Choose a new passphrase for the vault: ", "Enter the new passphrase again: ", 3)
	if err != nil {
		return err
	}
	err = v.ChangePassphrase(passphrase)
	if err != nil {
		return err
	}
	err = store.Save(v)
	if err != nil {
		return err
	}

	err = cmd.env.passphraseReader(account).Cache.Delete()
	if err != nil {
		cmd.env.logger.Debugf("cannot remove the cached passphrase of %s: %s", account, err)
	}

	fmt.Fprintf(cmd.env.io.Output(), "Changed the passphrase of %s.\n", account)
	return nil
}
