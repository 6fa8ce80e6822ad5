package vaultkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/client"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// LockCommand locks vaults in the agent.
type LockCommand struct {
	env     *Env
	account cli.StringValue
}

// NewLockCommand creates a new LockCommand.
func NewLockCommand(env *Env) *LockCommand {
	return &LockCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *LockCommand) Register(r cli.Registerer) {
	clause := r.Command("lock", "Lock the vaults in the agent. Remembered approvals are forgotten and the agent stops serving keys.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.account, Name: "account", Required: false, Description: "Only lock this account."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *LockCommand) Run() error {
	account := cmd.account.Param
	if account != "" {
		err := vault.ValidateAccountName(account)
		if err != nil {
			return err
		}
	}

	c, err := cmd.env.Client()
	if err != nil {
		return err
	}
	locked, err := c.Lock(context.Background(), account)
	if err == client.ErrAgentNotRunning {
		fmt.Fprintln(cmd.env.io.Output(), "The agent is not running, nothing to lock.")
		return nil
	} else if err != nil {
		return err
	}

	if len(locked) == 0 {
		fmt.Fprintln(cmd.env.io.Output(), "No vaults were unlocked.")
		return nil
	}
	fmt.Fprintf(cmd.env.io.Output(), "Locked %s.\n", strings.Join(locked, ", "))
	return nil
}
