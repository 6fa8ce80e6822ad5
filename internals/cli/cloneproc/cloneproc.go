// Package cloneproc starts copies of the running executable.
package cloneproc

import (
	"os"
	"os/exec"
)

// Spawn starts a detached clone of the client with the supplied parameters.
func Spawn(args ...string) error {
	cmd, err := command(args...)
	if err != nil {
		return err
	}
	detach(cmd)
	return cmd.Start()
}

// Run runs a clone of the client with the supplied parameters and waits for it to exit.
func Run(args ...string) error {
	cmd, err := command(args...)
	if err != nil {
		return err
	}
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func command(args ...string) (*exec.Cmd, error) {
	bin, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return exec.Command(bin, args...), nil
}
