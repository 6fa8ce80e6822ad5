package sshagent

import (
	"context"
	"time"

	"k8s.io/utils/clock"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// refresher keeps the keys of the agent endpoint in sync with the vault.
type refresher struct {
	agent    NativeAgent
	accounts AccountService
	vault    Vault
	settings Settings
	clock    clock.WithTicker
	logger   cli.Logger
	interval time.Duration
}

// run ticks immediately and then every interval until ctx is done.
func (r *refresher) run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.tick(ctx)
		}
	}
}

func (r *refresher) tick(ctx context.Context) {
	enabled, err := r.settings.SSHAgentEnabled(ctx)
	if err != nil {
		r.logger.Warningf("cannot read whether the SSH agent is enabled: %s", err)
	}
	if err != nil || !enabled {
		r.clearKeys(ctx)
		return
	}

	status, err := r.accounts.ActiveStatus(ctx)
	if err != nil || status.Status != vault.Unlocked {
		r.lock(ctx)
		return
	}

	ciphers, err := r.vault.GetAllDecrypted(ctx, status.UserID)
	if err != nil || ciphers == nil {
		if err != nil {
			r.logger.Debugf("cannot fetch the items of %s: %s", status.UserID, err)
		}
		r.lock(ctx)
		return
	}

	err = r.agent.SetKeys(ctx, keysFromCiphers(ciphers))
	if err != nil {
		r.logger.Errorf("cannot set the keys of the SSH agent: %s", err)
	}
}

// clearKeys empties the key set of the agent. Keys can also be set by list
// requests, so the agent is cleared on every tick while serving is disabled.
func (r *refresher) clearKeys(ctx context.Context) {
	err := r.agent.ClearKeys(ctx)
	if err != nil {
		r.logger.Errorf("cannot clear the keys of the SSH agent: %s", err)
	}
}

func (r *refresher) lock(ctx context.Context) {
	err := r.agent.Lock(ctx)
	if err != nil {
		r.logger.Errorf("cannot lock the SSH agent: %s", err)
	}
}
