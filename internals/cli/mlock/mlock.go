// Package mlock keeps unlocked vaults out of swap by locking the memory of
// the process.
package mlock

import (
	"os"
	"path/filepath"

	"github.com/secrethub/secrethub-go/internals/errio"
)

var (
	errMlock = errio.Namespace("mlock")

	// ErrNotSupported is returned on platforms that cannot lock memory.
	ErrNotSupported = errMlock.Code("not_supported").Error("locking memory is not supported on this platform, remove the --mlock flag")
	// ErrNotImplemented is returned when the kernel does not implement mlockall.
	ErrNotImplemented = errMlock.Code("enosys").ErrorPref("%s\n\n" +
		"The kernel does not implement mlock(), so unlocked vaults could be written to swap.")
	// ErrLimitTooLow is returned when the process may not lock enough memory.
	ErrLimitTooLow = errMlock.Code("enomem").ErrorPref("%s\n\n" +
		"vaultkit is not allowed to lock enough memory to keep unlocked vaults out of swap.\n" +
		"Raise the memlock limit in /etc/security/limits.conf, or give the executable the capability with " +
		"`sudo setcap 'cap_ipc_lock=+ep' %s`.")
	// ErrNotPermitted is returned when the process lacks the privilege to lock memory.
	ErrNotPermitted = errMlock.Code("eperm").ErrorPref("%s\n\n" +
		"vaultkit is not privileged to lock memory. Run it as root or give it the CAP_IPC_LOCK capability.")
)

// Supported reports whether LockMemory can lock memory on this platform.
func Supported() bool {
	return supported
}

// LockMemory locks all current and future memory of the process, so that
// decrypted vaults and passphrases are never written to disk.
func LockMemory() error {
	if !supported {
		return ErrNotSupported
	}
	return lockAll()
}

func executable() string {
	path, err := os.Executable()
	if err != nil {
		return "vaultkit"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
