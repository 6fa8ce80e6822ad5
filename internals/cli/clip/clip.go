// Package clip puts keys on the system clipboard and takes them off again.
package clip

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/atotto/clipboard"
	"github.com/secrethub/secrethub-go/internals/errio"
	"golang.org/x/crypto/bcrypt"
)

var (
	errClip = errio.Namespace("clipboard")

	// ErrUnavailable is returned when the system has no clipboard utility.
	ErrUnavailable = errClip.Code("unavailable").Error("no clipboard is available: install xclip, xsel or wl-clipboard, or print the key instead")
	// ErrCannotRead is returned when data cannot be read from the clipboard.
	ErrCannotRead = errClip.Code("cannot_read").ErrorPref("cannot read from clipboard: %s")
	// ErrCannotWrite is returned when data cannot be written to the clipboard.
	ErrCannotWrite = errClip.Code("cannot_write").ErrorPref("cannot write to clipboard: %s")
)

// Clipper allows you to read from and write to the clipboard.
type Clipper interface {
	ReadAll() ([]byte, error)
	WriteAll(value []byte) error
}

type systemClipboard struct{}

// NewClipboard creates a new Clipper backed by the system clipboard.
func NewClipboard() Clipper {
	return systemClipboard{}
}

func (systemClipboard) ReadAll() ([]byte, error) {
	if clipboard.Unsupported {
		return nil, ErrUnavailable
	}
	value, err := clipboard.ReadAll()
	if err != nil {
		return nil, ErrCannotRead(err)
	}
	return []byte(value), nil
}

func (systemClipboard) WriteAll(value []byte) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	err := clipboard.WriteAll(string(value))
	if err != nil {
		return ErrCannotWrite(err)
	}
	return nil
}

// Fingerprint returns a bcrypt hash that recognizes data on the clipboard
// without revealing it, e.g. on the command line of a clearing process.
func Fingerprint(data []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(digest(data), bcrypt.DefaultCost)
}

// ClearIfUnchanged empties the clipboard when it still holds the data that
// fingerprint was made from. It reports whether the clipboard was emptied.
func ClearIfUnchanged(c Clipper, fingerprint []byte) (bool, error) {
	current, err := c.ReadAll()
	if err != nil {
		return false, err
	}
	if bcrypt.CompareHashAndPassword(fingerprint, digest(current)) != nil {
		return false, nil
	}
	return true, c.WriteAll(nil)
}

// digest shortens data to fit in a bcrypt hash, which only uses 72 bytes.
func digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return []byte(hex.EncodeToString(sum[:]))
}
