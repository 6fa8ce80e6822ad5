//go:build dragonfly || freebsd || linux || openbsd || solaris

package mlock

import (
	"golang.org/x/sys/unix"
)

const supported = true

func lockAll() error {
	return explain(unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE))
}

// explain turns the errno of mlockall into an error that tells the user what to do.
func explain(err error) error {
	switch err {
	case nil:
		return nil
	case unix.ENOSYS:
		return ErrNotImplemented(err)
	case unix.ENOMEM:
		return ErrLimitTooLow(err, executable())
	case unix.EPERM:
		return ErrNotPermitted(err)
	default:
		return err
	}
}
