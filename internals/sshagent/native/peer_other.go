//go:build !linux

package native

import (
	"net"
)

// peerProcessName is only supported on Linux.
func peerProcessName(conn net.Conn) string {
	return ""
}
