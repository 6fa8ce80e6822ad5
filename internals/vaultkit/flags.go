package vaultkit

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/mlock"
)

// RegisterDebugFlag registers a debug flag that changes the log level of the given logger to DEBUG.
func RegisterDebugFlag(app *cli.App, logger cli.Logger) {
	app.PersistentFlags().BoolP("debug", "D", false, "Enable debug mode.")
	app.Root.AddPersistentPreRunE(func(command *cobra.Command, _ []string) error {
		if app.Root.Cmd.Flag("debug").Changed {
			logger.EnableDebug()
		}
		return nil
	})
}

// RegisterMlockFlag registers a mlock flag that enables memory locking when set to true.
func RegisterMlockFlag(app *cli.App) {
	var enabled bool
	app.PersistentFlags().BoolVar(&enabled, "mlock", false, "Keep unlocked vaults out of swap by locking the memory of the process.").Hidden()
	app.Root.AddPersistentPreRunE(func(command *cobra.Command, _ []string) error {
		if enabled {
			return mlock.LockMemory()
		}
		return nil
	})
}

// noColorFlag configures the global behaviour to disable colored output.
type noColorFlag bool

// RegisterColorFlag registers a flag that disables colored output.
func RegisterColorFlag(app *cli.App) {
	flag := noColorFlag(false)
	app.PersistentFlags().Var(&flag, "no-color", "Disable colored output.")
	app.Root.Cmd.PersistentFlags().Lookup("no-color").NoOptDefVal = "true"
}

func (f noColorFlag) Type() string {
	return "bool"
}

// String implements the pflag.Value interface.
func (f noColorFlag) String() string {
	return strconv.FormatBool(bool(f))
}

// Set disables colors when the given value is true.
func (f *noColorFlag) Set(value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*f = noColorFlag(b)
	color.NoColor = color.NoColor || b
	return nil
}
