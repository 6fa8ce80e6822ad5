package vaultkit

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/client"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// StatusCommand shows the state of the agent and the accounts.
type StatusCommand struct {
	env    *Env
	asJSON bool
}

// NewStatusCommand creates a new StatusCommand.
func NewStatusCommand(env *Env) *StatusCommand {
	return &StatusCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *StatusCommand) Register(r cli.Registerer) {
	clause := r.Command("status", "Show whether the agent runs and which vaults are unlocked.")
	clause.Flags().BoolVar(&cmd.asJSON, "json", false, "Print the status as JSON.")
	clause.BindAction(cmd.Run)
	clause.BindArguments(nil)
}

// Run handles the command with the options as specified in the command.
func (cmd *StatusCommand) Run() error {
	c, err := cmd.env.Client()
	if err != nil {
		return err
	}

	status, err := c.Status(context.Background())
	running := err == nil
	if err == client.ErrAgentNotRunning {
		status, err = cmd.offlineStatus()
	}
	if err != nil {
		return err
	}

	if cmd.asJSON {
		enc := json.NewEncoder(cmd.env.io.Output())
		enc.SetIndent("", "    ")
		return enc.Encode(status)
	}

	w := tabwriter.NewWriter(cmd.env.io.Output(), 0, 4, 4, ' ', 0)
	if running {
		fmt.Fprintf(w, "Agent:\t%s (pid %d, version %s)\n", color.GreenString("running"), status.PID, status.Version)
	} else {
		fmt.Fprintf(w, "Agent:\t%s\n", color.RedString("not running"))
	}
	sshAgent := "disabled"
	if status.SSHAgent.Enabled {
		sshAgent = fmt.Sprintf("enabled, prompt %s", status.SSHAgent.PromptBehavior)
	}
	fmt.Fprintf(w, "SSH agent:\t%s\n", sshAgent)
	if status.SSHAgent.Socket != "" {
		fmt.Fprintf(w, "Socket:\t%s\n", status.SSHAgent.Socket)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "ACCOUNT\tSTATUS\tLOCKS IN")
	for _, account := range status.Accounts {
		name := "  " + account.Name
		if account.Active {
			name = "* " + account.Name
		}
		locksIn := "-"
		if account.LocksIn > 0 {
			locksIn = units.HumanDuration(time.Duration(account.LocksIn) * time.Second)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, account.Status, locksIn)
	}
	return w.Flush()
}

// offlineStatus describes the accounts when no agent is running.
func (cmd *StatusCommand) offlineStatus() (*protocol.StatusResponse, error) {
	store, err := cmd.env.Store()
	if err != nil {
		return nil, err
	}
	accounts, err := store.Accounts()
	if err != nil {
		return nil, err
	}
	f, err := cmd.env.Settings()
	if err != nil {
		return nil, err
	}
	s, err := f.Load()
	if err != nil {
		return nil, err
	}

	status := &protocol.StatusResponse{
		Accounts: make([]protocol.AccountStatus, 0, len(accounts)),
		SSHAgent: protocol.SSHAgentStatus{
			Enabled:        s.SSHAgentEnabled,
			PromptBehavior: string(s.SSHAgentPromptBehavior),
		},
	}
	for _, account := range accounts {
		status.Accounts = append(status.Accounts, protocol.AccountStatus{
			Name:   account,
			Status: vault.Locked.String(),
			Active: account == s.ActiveAccount,
		})
	}
	return status, nil
}
