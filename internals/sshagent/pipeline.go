package sshagent

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// Translation keys of the messages shown by the pipeline.
const (
	MsgUnlockRequiredTitle = "sshAgentUnlockRequired"
	MsgUnlockRequired      = "sshAgentUnlockRequiredMessage"
	MsgUnlockTimeoutTitle  = "sshAgentUnlockTimeout"
	MsgUnlockTimeout       = "sshAgentUnlockTimeoutMessage"
	MsgUnknownProcess      = "unknownApplication"
)

type flowState int

const (
	stateIdle flowState = iota
	stateAwaitingUnlock
	stateFetchingCredentials
	stateAwaitingApproval
	stateResponded
	stateAbandoned
)

func (s flowState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAwaitingUnlock:
		return "awaiting unlock"
	case stateFetchingCredentials:
		return "fetching credentials"
	case stateAwaitingApproval:
		return "awaiting approval"
	case stateResponded:
		return "responded"
	case stateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// flow is the handling of a single SignRequest.
type flow struct {
	req   SignRequest
	state flowState
	seq   uint64

	// Guarded by pipeline.mu.
	cancelWait context.CancelFunc
	superseded bool
}

// pipeline answers sign requests. Every request is handled in its own flow.
// Only one flow at a time waits for the vault to be unlocked: a newer
// request supersedes it, after which the waiting flow ends without a response.
type pipeline struct {
	agent      NativeAgent
	accounts   AccountService
	vault      Vault
	settings   Settings
	policy     *Policy
	cache      *AuthorizationCache
	notifier   Notifier
	approver   Approver
	translator Translator
	clock      clock.Clock
	logger     cli.Logger

	unlockTimeout time.Duration

	mu      sync.Mutex
	seq     uint64
	waiting *flow
}

func (p *pipeline) transition(f *flow, to flowState) {
	p.logger.Debugf("sign request %d: %s -> %s", f.req.RequestID, f.state, to)
	f.state = to
}

// handle runs the flow of one request to completion.
func (p *pipeline) handle(ctx context.Context, req SignRequest) {
	f := &flow{req: req, state: stateIdle}

	enabled, err := p.settings.SSHAgentEnabled(ctx)
	if err != nil {
		p.logger.Warningf("cannot read whether the SSH agent is enabled: %s", err)
	}
	if err != nil || !enabled {
		p.respond(ctx, f, false)
		return
	}

	p.supersedeWaiting(f)

	userID, ok := p.resolveAccount(ctx, f)
	if !ok {
		return
	}

	p.transition(f, stateFetchingCredentials)
	ciphers, err := p.vault.GetAllDecrypted(ctx, userID)
	if err != nil || ciphers == nil {
		if err != nil {
			p.logger.Warningf("cannot fetch the items of %s: %s", userID, err)
		}
		p.respond(ctx, f, false)
		return
	}

	if req.IsListRequest {
		err = p.agent.SetKeys(ctx, keysFromCiphers(ciphers))
		if err != nil {
			p.logger.Errorf("cannot set the keys of the SSH agent: %s", err)
		}
		p.respond(ctx, f, true)
		return
	}

	cipher, found := findCipher(ciphers, req.CipherID)
	if !found {
		p.logger.Warningf("sign request %d: item %s not found", req.RequestID, req.CipherID)
		p.respond(ctx, f, false)
		return
	}

	if !p.policy.NeedsAuthorization(ctx, cipher.ID, req.IsAgentForwarding) {
		p.respond(ctx, f, true)
		return
	}

	p.transition(f, stateAwaitingApproval)
	p.focus(ctx)
	processName := req.ProcessName
	if processName == "" {
		processName = p.translator.T(MsgUnknownProcess)
	}
	approved, err := p.approver.Approve(ctx, ApprovalRequest{
		CipherName:        cipher.Name,
		ProcessName:       processName,
		IsAgentForwarding: req.IsAgentForwarding,
		Namespace:         req.Namespace,
	})
	if err != nil {
		if ctx.Err() != nil {
			p.abandon(f)
			return
		}
		p.logger.Warningf("sign request %d: approval failed, declining: %s", req.RequestID, err)
		approved = false
	}
	if approved {
		p.cache.Remember(cipher.ID)
	}
	p.respond(ctx, f, approved)
}

// supersedeWaiting makes f the latest flow and cancels the unlock wait of
// the flow it replaces.
func (p *pipeline) supersedeWaiting(f *flow) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	f.seq = p.seq
	if p.waiting != nil {
		p.waiting.superseded = true
		p.waiting.cancelWait()
		p.waiting = nil
	}
}

// resolveAccount returns the account to use for the flow, waiting for it to
// be unlocked when needed. It returns false when the flow is finished.
func (p *pipeline) resolveAccount(ctx context.Context, f *flow) (string, bool) {
	status, err := p.accounts.ActiveStatus(ctx)
	if err != nil {
		p.logger.Errorf("sign request %d: cannot get account status: %s", f.req.RequestID, err)
		p.abandon(f)
		return "", false
	}
	if status.Status == vault.Unlocked {
		return status.UserID, true
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.seq != f.seq {
		// A newer request arrived before this one started waiting.
		p.mu.Unlock()
		p.abandon(f)
		return "", false
	}
	f.cancelWait = cancel
	p.waiting = f
	p.mu.Unlock()

	p.transition(f, stateAwaitingUnlock)
	p.focus(ctx)
	p.notifier.Info(p.translator.T(MsgUnlockRequiredTitle), p.translator.T(MsgUnlockRequired))

	userID, err := p.waitForUnlock(waitCtx)

	p.mu.Lock()
	superseded := f.superseded
	if p.waiting == f {
		p.waiting = nil
	}
	p.mu.Unlock()

	switch {
	case superseded || ctx.Err() != nil:
		p.abandon(f)
		return "", false
	case err == ErrUnlockTimeout:
		p.notifier.Error(p.translator.T(MsgUnlockTimeoutTitle), p.translator.T(MsgUnlockTimeout))
		p.respond(ctx, f, false)
		return "", false
	case err != nil:
		p.logger.Errorf("sign request %d: unhandled error while waiting for unlock: %s", f.req.RequestID, err)
		p.abandon(f)
		return "", false
	}
	return userID, true
}

// waitForUnlock blocks until the active account is unlocked and returns it.
func (p *pipeline) waitForUnlock(ctx context.Context) (string, error) {
	sub := p.accounts.Subscribe()
	defer sub.Close()

	deadline := p.clock.Now().Add(p.unlockTimeout)
	timer := p.clock.NewTimer(p.unlockTimeout)
	defer timer.Stop()

	p.logger.Debugf("waiting for unlock until %s", deadline.Format(time.RFC3339))
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C():
			return "", ErrUnlockTimeout
		case status, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					return "", err
				}
				return "", ErrStatusStreamClosed
			}
			if status.Status == vault.Unlocked && status.UserID != "" {
				return status.UserID, nil
			}
		}
	}
}

func (p *pipeline) respond(ctx context.Context, f *flow, approved bool) {
	err := p.agent.SignRequestResponse(ctx, f.req.RequestID, approved)
	if err != nil {
		p.logger.Errorf("cannot respond to sign request %d: %s", f.req.RequestID, err)
	}
	p.transition(f, stateResponded)
}

func (p *pipeline) abandon(f *flow) {
	p.transition(f, stateAbandoned)
}

func (p *pipeline) focus(ctx context.Context) {
	err := p.agent.FocusWindow(ctx)
	if err != nil {
		p.logger.Debugf("cannot focus window: %s", err)
	}
}

func findCipher(ciphers []vault.Cipher, id string) (vault.Cipher, bool) {
	for _, c := range ciphers {
		if c.ID == id {
			return c, true
		}
	}
	return vault.Cipher{}, false
}
