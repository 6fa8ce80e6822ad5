package vaultkit

import (
	"encoding/hex"
	"time"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/clip"
	"github.com/vaultkit/vaultkit-cli/internals/cli/cloneproc"
)

// defaultClearClipboardAfter defines the default TTL for data written to the clipboard.
const defaultClearClipboardAfter = 45 * time.Second

// ClearClipboardCommand is a command to clear the contents of the clipboard after some time passed.
type ClearClipboardCommand struct {
	clipper clip.Clipper
	hash    cli.StringValue
	timeout time.Duration
	sleep   func(time.Duration)
}

// NewClearClipboardCommand creates a new ClearClipboardCommand.
func NewClearClipboardCommand() *ClearClipboardCommand {
	return &ClearClipboardCommand{
		clipper: clip.NewClipboard(),
		sleep:   time.Sleep,
	}
}

// Register registers the command, arguments and flags on the provided Registerer.
func (cmd *ClearClipboardCommand) Register(r cli.Registerer) {
	clause := r.Command("clipboard-clear", "Removes a private key from the clipboard.").Hidden()
	clause.Flags().DurationVar(&cmd.timeout, "timeout", 0, "Time to wait before clearing")

	clause.BindAction(cmd.Run)
	clause.BindArguments([]cli.Argument{{Value: &cmd.hash, Name: "hash", Required: true, Description: "Hash of the value to clear."}})
}

// Run clears the clipboard once the timeout passed, unless its content changed.
func (cmd *ClearClipboardCommand) Run() error {
	hash, err := hex.DecodeString(cmd.hash.Param)
	if err != nil {
		return err
	}

	if cmd.timeout > 0 {
		cmd.sleep(cmd.timeout)
	}

	_, err = clip.ClearIfUnchanged(cmd.clipper, hash)
	return err
}

// WriteClipboardAutoClear writes data to the clipboard and clears it after the timeout.
func WriteClipboardAutoClear(data []byte, timeout time.Duration, clipper clip.Clipper) error {
	hash, err := clip.Fingerprint(data)
	if err != nil {
		return err
	}

	err = clipper.WriteAll(data)
	if err != nil {
		return err
	}

	return cloneproc.Spawn(
		"clipboard-clear", hex.EncodeToString(hash),
		"--timeout", timeout.String(),
	)
}
