package notice

import (
	"context"
	"strings"
	"sync"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui"
	"github.com/vaultkit/vaultkit-cli/internals/i18n"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
)

const gitNamespace = "git"

// Approver asks for approval on the terminal. Only one question is
// shown at a time.
type Approver struct {
	io         ui.IO
	translator sshagent.Translator
	logger     cli.Logger
	mu         sync.Mutex
}

// NewApprover returns an Approver asking questions on io.
func NewApprover(io ui.IO, translator sshagent.Translator, logger cli.Logger) *Approver {
	return &Approver{
		io:         io,
		translator: translator,
		logger:     logger,
	}
}

type answer struct {
	ok  bool
	err error
}

// Approve asks the user whether the key in req may be used. When no terminal
// is available, the request is declined with a warning in the log. A
// cancelled ctx returns its error without waiting for the answer.
func (a *Approver) Approve(ctx context.Context, req sshagent.ApprovalRequest) (bool, error) {
	done := make(chan answer, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		if ctx.Err() != nil {
			done <- answer{err: ctx.Err()}
			return
		}
		ok, err := ui.AskYesNo(a.io, a.question(req), ui.DefaultNo)
		if err == ui.ErrCannotAsk {
			a.logger.Warningf("declined %s using SSH key %s: approval is required but the agent has no terminal to ask on. "+
				"Run `vaultkit agent` in a terminal to answer approval requests", req.ProcessName, req.CipherName)
			ok, err = false, nil
		}
		done <- answer{ok: ok, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-done:
		return res.ok, res.err
	}
}

func (a *Approver) question(req sshagent.ApprovalRequest) string {
	var lines []string
	lines = append(lines, a.translator.T(i18n.SSHAgentApproveTitle))
	if req.IsAgentForwarding {
		lines = append(lines, a.translator.T(i18n.SSHAgentForwardedWarning))
	}

	switch req.Namespace {
	case "":
		lines = append(lines, a.translator.T(i18n.SSHAgentApproveAuth, req.ProcessName, req.CipherName))
	case gitNamespace:
		lines = append(lines, a.translator.T(i18n.SSHAgentApproveGitSign, req.ProcessName, req.CipherName))
	default:
		lines = append(lines, a.translator.T(i18n.SSHAgentApproveSign, req.ProcessName, req.CipherName, req.Namespace))
	}

	lines = append(lines, a.translator.T(i18n.SSHAgentApproveQuestion))
	return strings.Join(lines, "\n")
}
