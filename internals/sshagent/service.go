package sshagent

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
)

// Defaults of the service.
const (
	DefaultUnlockTimeout   = 60 * time.Second
	DefaultRefreshInterval = 1000 * time.Millisecond
)

// Config contains the collaborators of the service.
type Config struct {
	Agent      NativeAgent
	Accounts   AccountService
	Vault      Vault
	Settings   Settings
	Notifier   Notifier
	Approver   Approver
	Translator Translator
	Logger     cli.Logger

	// Clock defaults to the real clock.
	Clock clock.WithTicker
	// UnlockTimeout defaults to DefaultUnlockTimeout.
	UnlockTimeout time.Duration
	// RefreshInterval defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration
}

// Service serves the SSH keys of the vault through the agent endpoint.
type Service struct {
	agent    NativeAgent
	accounts AccountService
	logger   cli.Logger

	cache     *AuthorizationCache
	pipeline  *pipeline
	refresher *refresher
}

// NewService creates a Service. Call Run to start it.
func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.UnlockTimeout <= 0 {
		cfg.UnlockTimeout = DefaultUnlockTimeout
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	cache := NewAuthorizationCache(cfg.Clock)
	return &Service{
		agent:    cfg.Agent,
		accounts: cfg.Accounts,
		logger:   cfg.Logger,
		cache:    cache,
		pipeline: &pipeline{
			agent:         cfg.Agent,
			accounts:      cfg.Accounts,
			vault:         cfg.Vault,
			settings:      cfg.Settings,
			policy:        NewPolicy(cfg.Settings, cache, cfg.Logger),
			cache:         cache,
			notifier:      cfg.Notifier,
			approver:      cfg.Approver,
			translator:    cfg.Translator,
			clock:         cfg.Clock,
			logger:        cfg.Logger,
			unlockTimeout: cfg.UnlockTimeout,
		},
		refresher: &refresher{
			agent:    cfg.Agent,
			accounts: cfg.Accounts,
			vault:    cfg.Vault,
			settings: cfg.Settings,
			clock:    cfg.Clock,
			logger:   cfg.Logger,
			interval: cfg.RefreshInterval,
		},
	}
}

// AuthorizationCache returns the approvals remembered by the service.
func (s *Service) AuthorizationCache() *AuthorizationCache {
	return s.cache
}

// Run initializes the agent endpoint and handles its requests until ctx is
// done or the endpoint stops delivering requests. Requests still in flight
// at that moment are abandoned without a response.
func (s *Service) Run(ctx context.Context) error {
	err := s.agent.Init(ctx)
	if err != nil {
		return err
	}
	if !s.agent.IsLoaded() {
		return ErrAgentNotLoaded
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.refresher.run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.watchAccounts(ctx)
	}()

	requests := s.agent.Requests()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case req, ok := <-requests:
			if !ok {
				s.logger.Debugf("SSH agent endpoint stopped delivering requests")
				break loop
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.pipeline.handle(ctx, req)
			}()
		}
	}

	cancel()
	wg.Wait()
	return nil
}

// HandleVaultLocked forgets all approvals and clears the keys of the agent.
// Call it when the user locks the vault.
func (s *Service) HandleVaultLocked(ctx context.Context) {
	s.reset(ctx, "vault locked")
}

// watchAccounts resets the service when the active account changes or the
// status stream ends.
func (s *Service) watchAccounts(ctx context.Context) {
	var active string
	status, err := s.accounts.ActiveStatus(ctx)
	if err != nil {
		s.logger.Warningf("cannot get the active account: %s", err)
	} else {
		active = status.UserID
	}

	sub := s.accounts.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					s.logger.Errorf("account status stream failed: %s", err)
					s.reset(ctx, "account status stream failed")
				} else {
					s.reset(ctx, "account status stream completed")
				}
				return
			}
			if status.UserID != active {
				active = status.UserID
				s.reset(ctx, "active account changed")
			}
		}
	}
}

func (s *Service) reset(ctx context.Context, reason string) {
	s.logger.Debugf("resetting SSH agent: %s", reason)
	s.cache.Clear()
	err := s.agent.ClearKeys(ctx)
	if err != nil {
		s.logger.Errorf("cannot clear the keys of the SSH agent: %s", err)
	}
}
