package vaultkit

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/cloneproc"
	"github.com/vaultkit/vaultkit-cli/internals/daemon"
	"github.com/vaultkit/vaultkit-cli/internals/i18n"
	"github.com/vaultkit/vaultkit-cli/internals/notice"
	"github.com/vaultkit/vaultkit-cli/internals/settings"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent/native"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// AgentCommand runs the agent that holds the unlocked vaults and serves
// their SSH keys.
type AgentCommand struct {
	env *Env

	kill         bool
	restart      bool
	daemon       bool
	socket       string
	logFile      string
	vaultTimeout time.Duration
}

// NewAgentCommand creates a new AgentCommand.
func NewAgentCommand(env *Env) *AgentCommand {
	return &AgentCommand{
		env: env,
	}
}

// Register registers the command and its flags on the provided Registerer.
func (cmd *AgentCommand) Register(r cli.Registerer) {
	clause := r.Command("agent", "Run the agent that serves the SSH keys of your unlocked vault.")
	clause.HelpLong("The agent keeps unlocked vaults in memory and listens on an SSH agent socket. " +
		"Point SSH_AUTH_SOCK at the socket to use the keys, for example with `eval $(vaultkit agent --daemon)`.\n\n" +
		"Whether the keys are served and when to ask for approval is configured with " +
		"`vaultkit config set ssh_agent_enabled` and `vaultkit config set ssh_agent_prompt_behavior`.\n\n" +
		"Approval is asked on the terminal of the agent. An agent started with --daemon, or by `vaultkit unlock`, " +
		"has no terminal, so it declines every request that needs approval and logs a warning. " +
		"This includes all forwarded requests, and all requests with the default prompt behavior `always`. " +
		"A background agent logs to agent.log in the config directory.")
	clause.Flags().BoolVar(&cmd.kill, "kill", false, "Stop the running agent.").NoEnvar()
	clause.Flags().BoolVar(&cmd.restart, "restart", false, "Restart the running agent.").NoEnvar()
	clause.Flags().BoolVarP(&cmd.daemon, "daemon", "d", false, "Start the agent in the background. A background agent cannot ask for approval.")
	clause.Flags().StringVar(&cmd.socket, "socket", "", "Path of the SSH agent socket. Defaults to ssh-agent.sock in the config directory.")
	clause.Flags().StringVar(&cmd.logFile, "log-file", "", "Append the log of the agent to this file instead of stderr.")
	clause.Flags().DurationVar(&cmd.vaultTimeout, "vault-timeout", 0, "Lock an unlocked vault after this much time. 0 keeps vaults unlocked until they are locked.")
	clause.BindAction(cmd.Run)
	clause.BindArguments(nil)
}

// Run handles the command with the options as specified in the command.
func (cmd *AgentCommand) Run() error {
	dir, err := cmd.env.Dir()
	if err != nil {
		return err
	}
	server := daemon.NewServer(dir.String(), cmd.env.logger)

	if cmd.kill || cmd.restart {
		err := server.Kill()
		if err != nil {
			return fmt.Errorf("stop agent: %v", err)
		}
		if cmd.kill {
			return nil
		}
	}

	socket := cmd.socket
	if socket == "" {
		socket = dir.AgentSocket()
	}

	if cmd.daemon {
		err := cloneproc.Spawn(
			"agent",
			"--config-dir", dir.String(),
			"--socket", socket,
			"--log-file", dir.AgentLog(),
			"--vault-timeout", cmd.vaultTimeout.String(),
		)
		if err != nil {
			return fmt.Errorf("cannot start daemon: %v", err)
		}
		cmd.printSocket(socket)
		return nil
	}

	logger := cmd.env.logger
	if cmd.logFile != "" {
		err := dir.Ensure()
		if err != nil {
			return err
		}
		f, err := os.OpenFile(cmd.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("open log file: %v", err)
		}
		defer f.Close()
		logger = cli.NewLoggerTo(f)
		server = daemon.NewServer(dir.String(), logger)
	}

	return cmd.serve(dir, server, socket, logger)
}

// serve runs the agent in the foreground until it receives a signal.
func (cmd *AgentCommand) serve(dir ProfileDir, server *daemon.Server, socket string, logger cli.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := dir.Ensure()
	if err != nil {
		return err
	}

	store := vault.NewStore(dir.VaultsDir())
	prefs := settings.NewFile(dir.String())
	active, err := prefs.ActiveAccount()
	if err != nil {
		return err
	}
	manager := vault.NewManager(store, active)
	defer manager.Close(nil)

	translator := i18n.FromEnv()
	logger.Debugf("messages in %s", translator.Language())

	agent := native.New(socket, logger, native.WithFocuser(notice.NewBell(os.Stderr)))
	defer func() {
		err := agent.Close()
		if err != nil {
			logger.Warningf("closing ssh agent: %v", err)
		}
	}()

	service := sshagent.NewService(sshagent.Config{
		Agent:      agent,
		Accounts:   manager,
		Vault:      manager,
		Settings:   prefs,
		Notifier:   notice.NewNotifier(os.Stderr),
		Approver:   notice.NewApprover(cmd.env.io, translator, logger),
		Translator: translator,
		Logger:     logger,
	})

	controller := daemon.NewController(ctx, daemon.Config{
		Version:      Version,
		Accounts:     manager,
		Store:        store,
		Settings:     prefs,
		LockHandler:  service,
		Cache:        service.AuthorizationCache(),
		AgentSocket:  socket,
		VaultTimeout: cmd.vaultTimeout,
		Logger:       logger,
	})
	defer controller.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() {
		errs <- service.Run(ctx)
	}()
	go func() {
		errs <- server.Serve(ctx, controller.Handler())
	}()

	cmd.printSocket(socket)

	err = <-errs
	cancel()
	<-errs
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func (cmd *AgentCommand) printSocket(socket string) {
	fmt.Fprintf(cmd.env.io.Output(), "SSH_AUTH_SOCK=%s; export SSH_AUTH_SOCK;\n", socket)
}
