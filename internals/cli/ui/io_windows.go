package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
)

// windowsIO writes colored output through the console API.
type windowsIO struct {
	standardIO
}

// NewUserIO creates a new IO from os.Stdin and os.Stdout. Questions go to the
// console when one is attached, so that they reach the user while the output
// is captured, as in `eval $(vaultkit agent --daemon)`.
func NewUserIO() IO {
	io := windowsIO{
		standardIO: newStdUserIO(),
	}
	in, err := os.OpenFile("CONIN$", os.O_RDWR, 0)
	if err != nil {
		return io
	}
	out, err := os.OpenFile("CONOUT$", os.O_WRONLY, 0)
	if err != nil {
		in.Close()
		return io
	}
	io.promptIn = in
	io.promptOut = out
	return io
}

// Output returns stdout, translating ANSI colors unless the output is
// redirected or colors are disabled.
func (o windowsIO) Output() io.Writer {
	if color.NoColor || isPiped(o.output) {
		return o.output
	}
	return colorable.NewColorable(o.output)
}

// isPiped reports whether file is redirected away from a console.
// Files that cannot be inspected are not considered piped.
func isPiped(file *os.File) bool {
	if _, err := file.Stat(); err != nil {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return true
	}
	fd := file.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}
