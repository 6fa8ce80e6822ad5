package sshagent

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
)

// AuthorizationCache holds the keys the user approved since the last reset.
type AuthorizationCache struct {
	clock clock.PassiveClock

	mu       sync.Mutex
	approved map[string]time.Time
}

// NewAuthorizationCache returns an empty cache.
func NewAuthorizationCache(clk clock.PassiveClock) *AuthorizationCache {
	return &AuthorizationCache{
		clock:    clk,
		approved: make(map[string]time.Time),
	}
}

// Remember records that the user approved the key.
func (c *AuthorizationCache) Remember(cipherID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approved[cipherID] = c.clock.Now()
}

// Has returns whether the key was approved since the last reset.
func (c *AuthorizationCache) Has(cipherID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.approved[cipherID]
	return ok
}

// Clear forgets all approvals.
func (c *AuthorizationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approved = make(map[string]time.Time)
}

// Len returns the number of remembered approvals.
func (c *AuthorizationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.approved)
}

// Policy decides whether a request needs the approval of the user.
type Policy struct {
	settings Settings
	cache    *AuthorizationCache
	logger   cli.Logger
}

// NewPolicy creates a policy reading the prompt behavior from settings.
func NewPolicy(settings Settings, cache *AuthorizationCache, logger cli.Logger) *Policy {
	return &Policy{
		settings: settings,
		cache:    cache,
		logger:   logger,
	}
}

// NeedsAuthorization returns whether the use of the key must be approved.
// Forwarded requests always need approval. Otherwise the prompt behavior
// decides. When it cannot be read, approval is required.
func (p *Policy) NeedsAuthorization(ctx context.Context, cipherID string, isForwarded bool) bool {
	if isForwarded {
		return true
	}

	behavior, err := p.settings.PromptBehavior(ctx)
	if err != nil {
		p.logger.Warningf("cannot read prompt behavior, asking for approval: %s", err)
		return true
	}

	switch behavior {
	case PromptNever:
		return false
	case PromptRememberUntilLock:
		return !p.cache.Has(cipherID)
	default:
		return true
	}
}
