// Package notice shows agent notices and approval questions on the terminal.
package notice

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Notifier writes one line per notice.
type Notifier struct {
	w  io.Writer
	mu sync.Mutex
}

// NewNotifier returns a Notifier writing to w.
func NewNotifier(w io.Writer) *Notifier {
	return &Notifier{w: w}
}

// Info shows an informational notice.
func (n *Notifier) Info(title, message string) {
	n.write(color.GreenString("[info] "), title, message)
}

// Error shows a notice about something that went wrong.
func (n *Notifier) Error(title, message string) {
	n.write(color.RedString("[error] "), title, message)
}

func (n *Notifier) write(prefix, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if message == "" {
		fmt.Fprintln(n.w, prefix+title)
		return
	}
	fmt.Fprintf(n.w, "%s%s: %s\n", prefix, title, message)
}

// Bell rings the terminal bell to draw attention to a pending request.
type Bell struct {
	w io.Writer
}

// NewBell returns a Bell writing to w.
func NewBell(w io.Writer) Bell {
	return Bell{w: w}
}

// Focus implements native.Focuser.
func (b Bell) Focus() error {
	_, err := io.WriteString(b.w, "\a")
	return err
}
