package cli

import (
	"strings"
)

// Argument is a positional argument of a command.
type Argument struct {
	Value       ArgValue
	Name        string
	Required    bool
	Placeholder string
	Description string
}

type ArgValue interface {
	Set(string) error
}

func ArgumentRegister(params []Argument, args []string) error {
	for i, arg := range args {
		err := params[i].Value.Set(arg)
		if err != nil {
			return err
		}
	}
	return nil
}

type StringValue struct {
	Param string
}

func (s *StringValue) Set(replacer string) error {
	s.Param = replacer
	return nil
}

func getRequired(params []Argument) int {
	required := 0
	for _, arg := range params {
		if arg.Required {
			required++
		}
	}
	return required
}

// useLine renders the usage of a command with its arguments,
// e.g. `unlock [<account>]`.
func useLine(name string, params []Argument) string {
	parts := []string{name}
	for _, arg := range params {
		placeholder := arg.Placeholder
		if placeholder == "" {
			placeholder = "<" + arg.Name + ">"
		}
		if !arg.Required {
			placeholder = "[" + placeholder + "]"
		}
		parts = append(parts, placeholder)
	}
	return strings.Join(parts, " ")
}
