// Package fakeui provides an in-memory ui.IO for tests.
package fakeui

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
)

// FakeIO is a helper type for testing that implements the ui.IO interface
type FakeIO struct {
	In        *FakeReader
	Out       *FakeWriter
	PromptIn  *FakeReader
	PromptOut *FakeWriter
	PromptErr error
}

// NewIO creates a new FakeIO with empty buffers.
func NewIO() *FakeIO {
	return &FakeIO{
		In: &FakeReader{
			Buffer: &bytes.Buffer{},
		},
		Out: &FakeWriter{
			Buffer: &bytes.Buffer{},
		},
		PromptIn: &FakeReader{
			Buffer: &bytes.Buffer{},
		},
		PromptOut: &FakeWriter{
			Buffer: &bytes.Buffer{},
		},
	}
}

// Input returns the mocked In.
func (f *FakeIO) Input() io.Reader {
	return f.In
}

// Output returns the mocked Out.
func (f *FakeIO) Output() io.Writer {
	return f.Out
}

// Prompts returns the mocked prompts and error.
func (f *FakeIO) Prompts() (io.Reader, io.Writer, error) {
	return f.PromptIn, f.PromptOut, f.PromptErr
}

func (f *FakeIO) IsInputPiped() bool {
	return f.In.Piped
}

func (f *FakeIO) IsOutputPiped() bool {
	return f.Out.Piped
}

// FakeReader implements the Reader interface. When Reads is set,
// every Read returns the next entry of Reads.
type FakeReader struct {
	*bytes.Buffer
	Piped   bool
	i       int
	Reads   []string
	ReadErr error
}

// Read returns the mocked ReadErr or reads from the mocked buffer.
func (f *FakeReader) Read(p []byte) (n int, err error) {
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	if len(f.Reads) > 0 {
		if len(f.Reads) <= f.i {
			return 0, errors.New("no more fake lines to read")
		}
		f.Buffer = bytes.NewBufferString(f.Reads[f.i])
		f.i++
	}
	return f.Buffer.Read(p)
}

// ReadPassword reads the next line without the trailing newline.
// When Reads is set, every call returns the next entry of Reads.
func (f *FakeReader) ReadPassword() ([]byte, error) {
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	if len(f.Reads) > 0 {
		if len(f.Reads) <= f.i {
			return nil, errors.New("no more fake lines to read")
		}
		line := strings.TrimSuffix(f.Reads[f.i], "\n")
		f.i++
		return []byte(line), nil
	}
	line := make([]byte, 0, 64)
	b := make([]byte, 1)
	for {
		n, err := f.Read(b)
		if n == 1 {
			if b[0] == '\n' {
				return line, nil
			}
			line = append(line, b[0])
		}
		if err == io.EOF {
			return line, nil
		} else if err != nil {
			return nil, err
		}
	}
}

// FakeWriter implements the Writer interface and is safe for concurrent use.
type FakeWriter struct {
	mu sync.Mutex
	*bytes.Buffer
	Piped bool
}

func (f *FakeWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Buffer.Write(p)
}

func (f *FakeWriter) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Buffer.String()
}
