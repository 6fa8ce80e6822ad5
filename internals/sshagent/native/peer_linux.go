//go:build linux

package native

import (
	"net"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"
)

// peerProcessName returns the executable name of the process on the other
// end of a unix socket, or an empty string when it cannot be determined.
func peerProcessName(conn net.Conn) string {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return ""
	}
	raw, err := unixConn.SyscallConn()
	if err != nil {
		return ""
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil {
		return ""
	}

	proc, err := ps.FindProcess(int(cred.Pid))
	if err != nil || proc == nil {
		return ""
	}
	return proc.Executable()
}
