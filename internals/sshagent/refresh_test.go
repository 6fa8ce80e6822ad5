package sshagent

import (
	"context"
	"testing"

	"gotest.tools/assert"

	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

func TestRefresher_Tick(t *testing.T) {
	cases := map[string]struct {
		enabled   bool
		status    vault.AccountStatus
		statusErr error
		ciphers   []vault.Cipher
		fetchErr  error

		expectKeys    []Key
		expectLocked  bool
		expectCleared bool
	}{
		"disabled": {
			enabled:       false,
			status:        unlocked,
			ciphers:       []vault.Cipher{sshKeyCipher("c1", "github")},
			expectCleared: true,
		},
		"locked": {
			enabled:      true,
			status:       locked,
			expectLocked: true,
		},
		"logged out": {
			enabled:      true,
			status:       vault.AccountStatus{},
			expectLocked: true,
		},
		"status error": {
			enabled:      true,
			status:       unlocked,
			statusErr:    errTest,
			expectLocked: true,
		},
		"fetch error": {
			enabled:      true,
			status:       unlocked,
			fetchErr:     errTest,
			expectLocked: true,
		},
		"no result": {
			enabled:      true,
			status:       unlocked,
			expectLocked: true,
		},
		"unlocked": {
			enabled: true,
			status:  unlocked,
			ciphers: []vault.Cipher{
				sshKeyCipher("c1", "github"),
				{ID: "c2", Type: vault.CipherTypeLogin, Name: "mail"},
			},
			expectKeys: []Key{{Name: "github", PrivateKey: "private-c1", CipherID: "c1"}},
		},
		"unlocked without keys": {
			enabled:    true,
			status:     unlocked,
			ciphers:    []vault.Cipher{},
			expectKeys: []Key{},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(tc.status)
			env.settings.enabled = tc.enabled
			env.accounts.statusErr = tc.statusErr
			env.vault.err = tc.fetchErr
			if tc.ciphers != nil {
				env.vault.ciphers["u1"] = tc.ciphers
			}

			env.service.refresher.tick(context.Background())

			assert.Equal(t, len(env.agent.cleared), boolToInt(tc.expectCleared))
			assert.Equal(t, len(env.agent.locked), boolToInt(tc.expectLocked))
			if tc.expectKeys == nil {
				assert.Equal(t, len(env.agent.setKeys), 0)
				return
			}
			assert.Equal(t, len(env.agent.setKeys), 1)
			assert.DeepEqual(t, <-env.agent.setKeys, tc.expectKeys)
		})
	}
}

func TestRefresher_DisabledTickClearsKeys(t *testing.T) {
	cases := map[string]struct {
		setup         func(ctx context.Context, env *testEnv)
		disabledTicks int
		expectCleared int
	}{
		"every disabled tick": {
			setup:         func(ctx context.Context, env *testEnv) {},
			disabledTicks: 3,
			expectCleared: 3,
		},
		"keys set by a list request": {
			setup: func(ctx context.Context, env *testEnv) {
				env.service.pipeline.handle(ctx, SignRequest{RequestID: 1, IsListRequest: true})
			},
			disabledTicks: 1,
			expectCleared: 1,
		},
		"keys set after a reset": {
			setup: func(ctx context.Context, env *testEnv) {
				env.service.HandleVaultLocked(ctx)
				env.service.refresher.tick(ctx)
			},
			disabledTicks: 1,
			expectCleared: 2,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(unlocked)
			env.vault.ciphers["u1"] = []vault.Cipher{sshKeyCipher("c1", "github")}
			ctx := context.Background()

			tc.setup(ctx, env)
			env.settings.setEnabled(false)
			for i := 0; i < tc.disabledTicks; i++ {
				env.service.refresher.tick(ctx)
			}

			assert.Equal(t, len(env.agent.cleared), tc.expectCleared)
		})
	}
}

func TestRefresher_Run(t *testing.T) {
	env := newTestEnv(unlocked)
	env.vault.ciphers["u1"] = []vault.Cipher{sshKeyCipher("c1", "github")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.service.refresher.run(ctx)
	}()

	// The first tick happens without waiting for the interval.
	expectKeys(t, env.agent)

	waitForTimer(t, env.clock)
	env.clock.Step(DefaultRefreshInterval)
	expectKeys(t, env.agent)

	cancel()
	<-done
}

func expectKeys(t *testing.T, agent *fakeAgent) []Key {
	t.Helper()
	select {
	case keys := <-agent.setKeys:
		return keys
	case <-timeAfter():
		t.Fatal("timed out waiting for keys to be set")
		return nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
