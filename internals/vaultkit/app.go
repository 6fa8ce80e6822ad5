// Package vaultkit implements the vaultkit command-line application.
package vaultkit

import (
	"fmt"
	"strings"

	"github.com/secrethub/secrethub-go/internals/errio"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
)

const (
	// ApplicationName is the name of the command-line application.
	ApplicationName = "vaultkit"
)

// Values set at build time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Errors
var (
	errMain = errio.Namespace(ApplicationName)

	ErrCannotFindHomeDir = errMain.Code("cannot_find_home_dir").ErrorPref(
		"cannot find your home directory: %s\n\n" +
			fmt.Sprintf(
				"Use the --config-dir flag or %s_CONFIG_DIR environment variable to choose where vaultkit keeps its files.",
				strings.ToUpper(ApplicationName),
			),
	)
	ErrInvalidConfigDirFlag = errMain.Code("invalid_config_dir").Errorf(
		"the path to the vaultkit configuration directory must be an absolute path and is configured with the --config-dir flag or %s_CONFIG_DIR environment variable",
		strings.ToUpper(ApplicationName),
	)
	ErrNoActiveAccount      = errMain.Code("no_active_account").Error("no account is active. Create one with `vaultkit account init` or choose one with `vaultkit account switch`")
	ErrPassphraseFlagNotSet = errMain.Code("passphrase_not_set").Error(
		fmt.Sprintf(
			"required --passphrase flag has not been set.\n\n"+
				"When input or output is piped, the --passphrase flag (or %s_PASSPHRASE env var) is required.",
			strings.ToUpper(ApplicationName),
		),
	)
	ErrCannotDoWithoutForce = errMain.Code("cannot_do_without_force").Error(
		"cannot perform this action without confirmation or a --force flag.\n\n" +
			"This usually happens when you pipe either the input or output of the command. " +
			"If you are sure you want to perform this action, run the same command with the --force or -f flag.")
)

// App is the vaultkit command-line application.
type App struct {
	cli     *cli.App
	io      ui.IO
	logger  cli.Logger
	profile *ProfileDirFlag
	pass    *PassphraseFlag
}

// NewApp creates a new command-line application.
func NewApp() *App {
	help := "vaultkit keeps SSH keys in an encrypted vault and serves them through an SSH agent.\n\n" +
		"Run `vaultkit agent` and point SSH_AUTH_SOCK at the socket it prints. " +
		"Unlock your vault with `vaultkit unlock` to make your keys available.\n\n" +
		"The CLI is configurable through command-line flags and environment variables. " +
		"Options set on the command-line take precedence over those set in the environment. " +
		"The format for environment variables is `VAULTKIT_[COMMAND_]FLAG_NAME`."
	return &App{
		cli:     cli.NewApp(ApplicationName, help),
		io:      ui.NewUserIO(),
		logger:  cli.NewLogger(),
		profile: &ProfileDirFlag{},
		pass:    &PassphraseFlag{},
	}
}

// Version sets the version that is shown by --version.
func (app *App) Version(version string, commit string) *App {
	Version = version
	app.cli = app.cli.Version(ApplicationName + " version " + version + ", build " + commit)
	return app
}

// Run builds the command-line application, parses the arguments,
// configures global behavior and executes the command given by the args.
func (app *App) Run(args []string) error {
	RegisterDebugFlag(app.cli, app.logger)
	RegisterMlockFlag(app.cli)
	RegisterColorFlag(app.cli)
	app.profile.Register(app.cli)
	app.pass.Register(app.cli)
	app.registerCommands()

	return app.cli.Run(args)
}

// registerCommands initializes all commands and registers them on the app.
func (app *App) registerCommands() {
	env := &Env{
		io:      app.io,
		logger:  app.logger,
		profile: app.profile,
		pass:    app.pass,
	}

	// Management commands
	NewAccountCommand(env).Register(app.cli)
	NewSSHKeyCommand(env).Register(app.cli)
	NewConfigCommand(env).Register(app.cli)
	NewKeyringCommand(env).Register(app.cli)

	// Commands
	NewAgentCommand(env).Register(app.cli)
	NewUnlockCommand(env).Register(app.cli)
	NewLockCommand(env).Register(app.cli)
	NewStatusCommand(env).Register(app.cli)

	// Hidden commands
	NewClearClipboardCommand().Register(app.cli)
	NewPrintEnvCommand(app.cli, app.io).Register(app.cli)
}
