//go:build !(dragonfly || freebsd || linux || openbsd || solaris)

package mlock

const supported = false

func lockAll() error {
	return ErrNotSupported
}
