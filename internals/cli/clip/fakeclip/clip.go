// Package fakeclip provides an in-memory clip.Clipper for tests.
package fakeclip

import (
	"sync"

	"github.com/vaultkit/vaultkit-cli/internals/cli/clip"
)

// Clipper holds the last written value in memory.
type Clipper struct {
	mu       sync.Mutex
	val      []byte
	WriteErr error
}

// New creates an empty fake clipboard.
func New() *Clipper {
	return &Clipper{val: []byte{}}
}

var _ clip.Clipper = (*Clipper)(nil)

func (c *Clipper) ReadAll() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, nil
}

func (c *Clipper) WriteAll(value []byte) error {
	if c.WriteErr != nil {
		return c.WriteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = value
	return nil
}
