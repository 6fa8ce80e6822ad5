//go:build !windows

package ui

import "os"

// NewUserIO creates a new IO from os.Stdin and os.Stdout that prompts on /dev/tty when it is available.
func NewUserIO() IO {
	io := newStdUserIO()
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err == nil {
		io.promptIn = tty
		io.promptOut = tty
	}
	return io
}

// isPiped checks whether the file is a pipe.
// If the file does not exist, it returns false.
func isPiped(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}

	return (stat.Mode() & os.ModeCharDevice) == 0
}
