package ui

import (
	"bufio"
	"io"
	"os"

	"github.com/secrethub/secrethub-go/internals/errio"
	"golang.org/x/term"
)

// Errors
var (
	errRead      = errio.Namespace("read")
	ErrReadInput = errRead.Code("read_input").ErrorPref("could not read input: %s")
)

// IO is an interface to work with input/output.
type IO interface {
	Input() io.Reader
	Output() io.Writer
	// Prompts returns the reader and writer to use for interactive questions.
	// When no terminal is available, ErrCannotAsk is returned.
	Prompts() (io.Reader, io.Writer, error)
	IsInputPiped() bool
	IsOutputPiped() bool
}

// passwordReader is implemented by prompt readers that can read input
// without echoing it.
type passwordReader interface {
	ReadPassword() ([]byte, error)
}

// standardIO is a middleware between input and output to the CLI program.
// promptIn and promptOut are the terminal of the user, when one is attached.
type standardIO struct {
	input     *os.File
	output    *os.File
	promptIn  *os.File
	promptOut *os.File
}

// newStdUserIO creates a new standardIO middleware only from os.Stdin and os.Stdout.
func newStdUserIO() standardIO {
	return standardIO{
		input:  os.Stdin,
		output: os.Stdout,
	}
}

// Input returns the standardIO's input.
func (o standardIO) Input() io.Reader {
	return o.input
}

// Output returns the standardIO's output.
func (o standardIO) Output() io.Writer {
	return o.output
}

// Prompts returns the terminal when it is available. Otherwise it returns
// stdin and stdout, as long as neither of them is piped.
func (o standardIO) Prompts() (io.Reader, io.Writer, error) {
	if o.promptIn != nil && o.promptOut != nil {
		return o.promptIn, o.promptOut, nil
	}
	if o.IsOutputPiped() || o.IsInputPiped() {
		return nil, nil, ErrCannotAsk
	}
	return o.input, o.output, nil
}

func (o standardIO) IsInputPiped() bool {
	return isPiped(o.input)
}

func (o standardIO) IsOutputPiped() bool {
	return isPiped(o.output)
}

// readPassword reads one line of input from the terminal without echoing the user input.
func readPassword(r io.Reader) (string, error) {
	if pr, ok := r.(passwordReader); ok {
		password, err := pr.ReadPassword()
		return string(password), err
	}

	file, ok := r.(*os.File)
	if !ok {
		return "", ErrCannotAsk
	}
	// this case happens among other things when input is piped and ReadPassword is called.
	if !term.IsTerminal(int(file.Fd())) {
		return "", ErrCannotAsk
	}

	password, err := term.ReadPassword(int(file.Fd()))
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// Readln reads 1 line of input from a io.Reader. The newline character is not included in the response.
func Readln(r io.Reader) (string, error) {
	s := bufio.NewScanner(r)
	s.Scan()
	err := s.Err()
	if err != nil {
		return "", ErrReadInput(err)
	}
	return s.Text(), nil
}
