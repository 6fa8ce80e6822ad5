// Package sshagent connects an SSH agent endpoint to the vault. It answers
// sign and list requests, asks the user for approval when needed and keeps
// the keys the agent serves in sync with the unlocked vault.
package sshagent

import (
	"context"

	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// SignRequest is one request received by the agent endpoint. Every request
// is answered exactly once with SignRequestResponse, unless the service is
// stopped before that.
type SignRequest struct {
	RequestID         uint32
	CipherID          string
	IsListRequest     bool
	IsAgentForwarding bool
	ProcessName       string
	Namespace         string
}

// Key is an SSH key as served by the agent endpoint.
type Key struct {
	Name       string
	PrivateKey string
	CipherID   string
}

// PromptBehavior determines when the user is asked to approve the use of a key.
type PromptBehavior string

// Supported prompt behaviors.
const (
	PromptNever             PromptBehavior = "never"
	PromptAlways            PromptBehavior = "always"
	PromptRememberUntilLock PromptBehavior = "remember_until_lock"
)

// Valid returns whether b is a known prompt behavior.
func (b PromptBehavior) Valid() bool {
	switch b {
	case PromptNever, PromptAlways, PromptRememberUntilLock:
		return true
	}
	return false
}

// NativeAgent is the endpoint that speaks the SSH agent protocol.
type NativeAgent interface {
	Init(ctx context.Context) error
	IsLoaded() bool
	// Requests delivers the inbound sign and list requests.
	Requests() <-chan SignRequest
	SignRequestResponse(ctx context.Context, requestID uint32, approved bool) error
	SetKeys(ctx context.Context, keys []Key) error
	ClearKeys(ctx context.Context) error
	Lock(ctx context.Context) error
	FocusWindow(ctx context.Context) error
}

// AccountService reports the active account and its authentication status.
type AccountService interface {
	ActiveStatus(ctx context.Context) (vault.AccountStatus, error)
	Subscribe() vault.StatusSubscription
}

// Vault gives access to the decrypted items of an account.
type Vault interface {
	GetAllDecrypted(ctx context.Context, userID string) ([]vault.Cipher, error)
}

// Settings are the user preferences that are read for every request and tick.
type Settings interface {
	SSHAgentEnabled(ctx context.Context) (bool, error)
	PromptBehavior(ctx context.Context) (PromptBehavior, error)
}

// Notifier shows short, non-blocking messages to the user.
type Notifier interface {
	Info(title, message string)
	Error(title, message string)
}

// ApprovalRequest describes the use of a key the user is asked to approve.
type ApprovalRequest struct {
	CipherName        string
	ProcessName       string
	IsAgentForwarding bool
	Namespace         string
}

// Approver asks the user whether a key may be used.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// Translator looks up localized messages.
type Translator interface {
	T(key string, args ...interface{}) string
}

// keysFromCiphers selects the SSH keys that are not in the trash.
func keysFromCiphers(ciphers []vault.Cipher) []Key {
	keys := []Key{}
	for _, c := range ciphers {
		if !c.IsSSHKey() || c.IsDeleted() {
			continue
		}
		keys = append(keys, Key{
			Name:       c.Name,
			PrivateKey: c.SSHKey.PrivateKey,
			CipherID:   c.ID,
		})
	}
	return keys
}
