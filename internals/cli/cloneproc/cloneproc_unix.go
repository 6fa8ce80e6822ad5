//go:build linux || darwin

package cloneproc

import (
	"os/exec"
	"syscall"
)

// detach starts the process in a new session without a controlling terminal,
// so it outlives the parent and never blocks on reading the terminal.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
