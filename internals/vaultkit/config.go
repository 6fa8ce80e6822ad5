package vaultkit

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/settings"
)

// ConfigCommand handles the settings of vaultkit.
type ConfigCommand struct {
	env *Env
}

// NewConfigCommand creates a new ConfigCommand.
func NewConfigCommand(env *Env) *ConfigCommand {
	return &ConfigCommand{
		env: env,
	}
}

// Register registers the command and its sub-commands on the provided Registerer.
func (cmd *ConfigCommand) Register(r cli.Registerer) {
	clause := r.Command("config", "Manage your settings. Available settings: "+strings.Join(settings.Keys(), ", ")+".")
	NewConfigGetCommand(cmd.env).Register(clause)
	NewConfigSetCommand(cmd.env).Register(clause)
	NewConfigLsCommand(cmd.env).Register(clause)
}

// ConfigGetCommand prints the value of a setting.
type ConfigGetCommand struct {
	env *Env
	key cli.StringValue
}

// NewConfigGetCommand creates a new ConfigGetCommand.
func NewConfigGetCommand(env *Env) *ConfigGetCommand {
	return &ConfigGetCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *ConfigGetCommand) Register(r cli.Registerer) {
	clause := r.Command("get", "Print the value of a setting.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.key, Name: "key", Required: true, Description: "The name of the setting."}})
}

// Run handles the command with the options as specified in the command.
func (cmd *ConfigGetCommand) Run() error {
	f, err := cmd.env.Settings()
	if err != nil {
		return err
	}
	s, err := f.Load()
	if err != nil {
		return err
	}
	value, err := s.Get(cmd.key.Param)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.env.io.Output(), value)
	return nil
}

// ConfigSetCommand changes the value of a setting.
type ConfigSetCommand struct {
	env   *Env
	key   cli.StringValue
	value cli.StringValue
}

// NewConfigSetCommand creates a new ConfigSetCommand.
func NewConfigSetCommand(env *Env) *ConfigSetCommand {
	return &ConfigSetCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *ConfigSetCommand) Register(r cli.Registerer) {
	clause := r.Command("set", "Change the value of a setting. A running agent picks up the change immediately.")
	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{
		{Value: &cmd.key, Name: "key", Required: true, Description: "The name of the setting."},
		{Value: &cmd.value, Name: "value", Required: true, Description: "The new value."},
	})
}

// Run handles the command with the options as specified in the command.
func (cmd *ConfigSetCommand) Run() error {
	f, err := cmd.env.Settings()
	if err != nil {
		return err
	}
	return f.Update(func(s *settings.Settings) error {
		return s.Set(cmd.key.Param, cmd.value.Param)
	})
}

// ConfigLsCommand prints all settings.
type ConfigLsCommand struct {
	env *Env
}

// NewConfigLsCommand creates a new ConfigLsCommand.
func NewConfigLsCommand(env *Env) *ConfigLsCommand {
	return &ConfigLsCommand{
		env: env,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *ConfigLsCommand) Register(r cli.Registerer) {
	clause := r.Command("ls", "List all settings.")
	clause.Alias("list")
	clause.BindAction(cmd.Run)
	clause.BindArguments(nil)
}

// Run handles the command with the options as specified in the command.
func (cmd *ConfigLsCommand) Run() error {
	f, err := cmd.env.Settings()
	if err != nil {
		return err
	}
	s, err := f.Load()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.env.io.Output(), 0, 4, 4, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, key := range settings.Keys() {
		value, err := s.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return w.Flush()
}
