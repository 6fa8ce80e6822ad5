package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"bitbucket.org/zombiezen/cardcpx/natsort"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// DefaultEnvSeparator defines how to join env var names.
	DefaultEnvSeparator = "_"
	// DefaultCommandDelimiters defines which delimiters should be replaced.
	DefaultCommandDelimiters = []string{" ", "-"}
)

// App represents a command-line application that wraps the
// cobra library and adds functionality for verifying environment
// variables used for configuring the cli.
type App struct {
	Root         *CommandClause
	name         string
	envPrefix    string
	delimiters   []string
	separator    string
	knownEnvVars map[string]struct{}
}

// NewApp defines a new command-line application.
func NewApp(name, help string) *App {
	app := &App{
		Root: &CommandClause{
			Cmd: &cobra.Command{Use: name, Short: help, SilenceErrors: true, SilenceUsage: true},
		},
		name:         name,
		envPrefix:    formatName(name, "", DefaultEnvSeparator, DefaultCommandDelimiters...),
		delimiters:   DefaultCommandDelimiters,
		separator:    DefaultEnvSeparator,
		knownEnvVars: make(map[string]struct{}),
	}
	app.Root.App = app

	app.registerRootEnvVarParsing()

	return app
}

// Command defines a new top-level command with the given name and help text.
func (a *App) Command(name, help string) *CommandClause {
	return a.Root.Command(name, help)
}

// Version adds a flag for displaying the application version number.
func (a *App) Version(version string) *App {
	a.Root.Cmd.Version = version
	return a
}

// Run parses the arguments and executes the matching command.
func (a *App) Run(args []string) error {
	a.Root.Cmd.SetArgs(args)
	return a.Root.Cmd.Execute()
}

// registerEnvVar ensures the app recognizes an environment variable.
func (a *App) registerEnvVar(name string) {
	a.knownEnvVars[strings.ToUpper(name)] = struct{}{}
}

// unregisterEnvVar ensures the app does not recognize an environment variable.
func (a *App) unregisterEnvVar(name string) {
	delete(a.knownEnvVars, strings.ToUpper(name))
}

// PrintEnv reads all environment variables starting with the app name and writes
// a table with the keys and their status: set or unrecognized. The values are
// never printed. Setting verbose to true also includes known variables that are not set.
func (a *App) PrintEnv(w io.Writer, verbose bool, osEnv func() []string) error {
	tabWriter := tabwriter.NewWriter(w, 0, 4, 4, ' ', 0)
	fmt.Fprintf(tabWriter, "%s\t%s\n", "NAME", "STATUS")

	envVarStatus := make(map[string]string)
	for _, envVar := range osEnv() {
		key, _, match := splitVar(a.envPrefix, a.separator, envVar)
		key = strings.ToUpper(key)
		if match {
			if _, isKnown := a.knownEnvVars[key]; isKnown {
				envVarStatus[key] = "set"
			} else {
				envVarStatus[key] = "unrecognized"
			}
		}
	}

	if verbose {
		for known := range a.knownEnvVars {
			if _, isSet := envVarStatus[known]; !isSet {
				envVarStatus[known] = "-"
			}
		}
	}

	rows := []string{}
	for envVar, status := range envVarStatus {
		rows = append(rows, fmt.Sprintf("%s\t%s", envVar, status))
	}

	natsort.Strings(rows)
	for _, row := range rows {
		fmt.Fprintln(tabWriter, row)
	}

	return tabWriter.Flush()
}

// CheckStrictEnv checks that every environment variable that starts with the app name is recognized by the application.
func (a *App) CheckStrictEnv(osEnv func() []string) error {
	for _, envVar := range osEnv() {
		key, _, match := splitVar(a.envPrefix, a.separator, envVar)
		if match {
			key = strings.ToUpper(key)
			if _, isKnown := a.knownEnvVars[key]; !isKnown {
				return fmt.Errorf("environment variable set, but not recognized: %s", key)
			}
		}
	}
	return nil
}

// PersistentFlags returns a flag set that allows configuring
// global persistent flags (that work on all commands of the CLI).
func (a *App) PersistentFlags() *FlagSet {
	return &FlagSet{FlagSet: a.Root.Cmd.PersistentFlags(), cmd: a.Root}
}

// registerRootEnvVarParsing ensures that flags on the root command with environment variables are set to
// the value of their corresponding environment variable if they are not set already.
func (a *App) registerRootEnvVarParsing() {
	a.Root.AddPersistentPreRunE(func(_ *cobra.Command, _ []string) error {
		for _, flag := range a.Root.flags {
			err := setFlagFromEnv(flag)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CommandClause represents a command clause in a command-line application.
type CommandClause struct {
	Cmd   *cobra.Command
	name  string
	App   *App
	Args  []Argument
	flags map[string]*Flag
}

// Command adds a new subcommand to this command.
func (c *CommandClause) Command(name, help string) *CommandClause {
	clause := &CommandClause{
		Cmd:  &cobra.Command{Use: name, Short: help, SilenceErrors: true, SilenceUsage: true},
		name: name,
		App:  c.App,
	}
	c.Cmd.AddCommand(clause.Cmd)
	return clause
}

// Hidden hides the command in help texts.
func (c *CommandClause) Hidden() *CommandClause {
	c.Cmd.Hidden = true
	return c
}

func (c *CommandClause) fullCommand() string {
	if c.Cmd == c.Cmd.Root() {
		return c.App.name
	}
	return c.Cmd.CommandPath()
}

// HelpLong sets the long help text shown by `<command> --help`.
func (c *CommandClause) HelpLong(helpLong string) {
	c.Cmd.Long = helpLong
}

func (c *CommandClause) Alias(alias string) {
	c.Cmd.Aliases = append(c.Cmd.Aliases, alias)
}

// registerEnvVarParsing ensures that flags with environment variables are set to
// the value of their corresponding environment variable if they are not set already.
func (c *CommandClause) registerEnvVarParsing() {
	c.AddPreRunE(func(_ *cobra.Command, _ []string) error {
		for _, flag := range c.flags {
			err := setFlagFromEnv(flag)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Flag returns the flag with the given long name, adding an environment
// variable default configurable by APP_COMMAND_FLAG_NAME.
func (c *CommandClause) Flag(name string) *Flag {
	if flag, ok := c.flags[name]; ok {
		return flag
	}
	fullCmd := strings.Replace(c.fullCommand(), " ", c.App.separator, -1)
	if cmd, ok := c.isPersistentFlag(name); ok {
		fullCmd = strings.Replace(cmd.fullCommand(), " ", c.App.separator, -1)
	}
	prefix := formatName(fullCmd, "", c.App.separator, c.App.delimiters...)
	envVar := formatName(name, prefix, c.App.separator, c.App.delimiters...)

	flag := (&Flag{
		flag: c.Cmd.Flag(name),
		app:  c.App,
	}).Envar(envVar)
	if c.flags == nil {
		if c.Cmd != c.Cmd.Root() {
			c.registerEnvVarParsing()
		}
		c.flags = make(map[string]*Flag)
	}
	c.flags[name] = flag
	return flag
}

// Flags returns the local flag set of the command.
func (c *CommandClause) Flags() *FlagSet {
	return &FlagSet{FlagSet: c.Cmd.Flags(), cmd: c}
}

func (c *CommandClause) isPersistentFlag(name string) (*CommandClause, bool) {
	if c.Cmd == c.Cmd.Root() {
		return nil, false
	}
	var parent *CommandClause
	for p := c.Cmd.Parent(); p != nil; p = p.Parent() {
		p.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
			if flag.Name == name {
				parent = &CommandClause{Cmd: p, App: c.App}
			}
		})
	}
	return parent, parent != nil
}

// BindArguments registers the positional arguments of the command. They
// are validated and set before the action runs.
func (c *CommandClause) BindArguments(params []Argument) {
	c.Args = params
	if params != nil {
		c.Cmd.Use = useLine(c.name, params)
		c.AddPreRunE(func(cmd *cobra.Command, args []string) error {
			if err := c.argumentError(args); err != nil {
				return err
			}
			return ArgumentRegister(params, args)
		})
	}
}

// BindAction sets the function that is executed when the command is run.
func (c *CommandClause) BindAction(fn func() error) {
	if fn != nil {
		c.Cmd.RunE = func(cmd *cobra.Command, args []string) error {
			return fn()
		}
	}
}

func (c *CommandClause) AddPreRunE(f func(*cobra.Command, []string) error) {
	c.Cmd.PreRunE = MergeFuncs(c.Cmd.PreRunE, f)
}

func (c *CommandClause) AddPersistentPreRunE(f func(*cobra.Command, []string) error) {
	c.Cmd.PersistentPreRunE = MergeFuncs(c.Cmd.PersistentPreRunE, f)
}

// MergeFuncs returns a function that runs first and then second,
// stopping at the first error. Either may be nil.
func MergeFuncs(first, second func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return func(cmd *cobra.Command, args []string) error {
		if err := first(cmd, args); err != nil {
			return err
		}
		return second(cmd, args)
	}
}

// setFlagFromEnv sets the value of a flag to the value found in the environment if the flag has not been
// explicitly set in another way.
func setFlagFromEnv(flag *Flag) error {
	if !flag.flag.Changed && flag.HasEnvarValue() {
		err := flag.flag.Value.Set(os.Getenv(flag.envVar))
		if err != nil {
			return err
		}
	}
	return nil
}

// Registerer allows others to register commands on it.
type Registerer interface {
	Command(cmd string, help string) *CommandClause
}
