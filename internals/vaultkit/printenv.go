package vaultkit

import (
	"os"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
)

// PrintEnvCommand reports which VAULTKIT_ environment variables are set and
// whether vaultkit recognizes them.
type PrintEnvCommand struct {
	app     *cli.App
	io      ui.IO
	osEnv   func() []string
	verbose bool
	strict  bool
}

// NewPrintEnvCommand creates a new PrintEnvCommand.
func NewPrintEnvCommand(app *cli.App, io ui.IO) *PrintEnvCommand {
	return &PrintEnvCommand{
		app:   app,
		io:    io,
		osEnv: os.Environ,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *PrintEnvCommand) Register(r cli.Registerer) {
	clause := r.Command("printenv", "Print the environment variables that configure vaultkit.").Hidden()
	clause.Flags().BoolVarP(&cmd.verbose, "verbose", "v", false, "Also list the variables that are not set.").NoEnvar()
	clause.Flags().BoolVar(&cmd.strict, "strict", false, "Fail when a variable is set that vaultkit does not recognize.").NoEnvar()
	clause.BindAction(cmd.Run)
	clause.BindArguments(nil)
}

// Run prints the table and, with --strict, checks that every variable is recognized.
func (cmd *PrintEnvCommand) Run() error {
	err := cmd.app.PrintEnv(cmd.io.Output(), cmd.verbose, cmd.osEnv)
	if err != nil {
		return err
	}
	if cmd.strict {
		return cmd.app.CheckStrictEnv(cmd.osEnv)
	}
	return nil
}
