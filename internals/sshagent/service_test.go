package sshagent

import (
	"context"
	"testing"

	"gotest.tools/assert"

	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// runService starts the service and returns a function that stops it.
func runService(t *testing.T, env *testEnv) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- env.service.Run(ctx)
	}()
	return func() error {
		cancel()
		return <-errs
	}
}

func TestService_Run_HandlesRequests(t *testing.T) {
	env := newTestEnv(unlocked)
	env.vault.ciphers["u1"] = []vault.Cipher{sshKeyCipher("c1", "github")}
	stop := runService(t, env)

	env.agent.requests <- SignRequest{RequestID: 1, CipherID: "c1"}
	assert.Equal(t, env.agent.expectResponse(t), response{id: 1, approved: true})

	assert.NilError(t, stop())
}

func TestService_Run_AbandonsWaitingFlowsOnStop(t *testing.T) {
	env := newTestEnv(locked)
	stop := runService(t, env)

	env.agent.requests <- SignRequest{RequestID: 1, CipherID: "c1"}
	env.notifier.expect(t, infoNotice)

	assert.NilError(t, stop())
	env.agent.expectNoResponse(t)
}

func TestService_Run_EndpointStops(t *testing.T) {
	env := newTestEnv(locked)
	errs := make(chan error, 1)
	go func() {
		errs <- env.service.Run(context.Background())
	}()

	close(env.agent.requests)

	select {
	case err := <-errs:
		assert.NilError(t, err)
	case <-timeAfter():
		t.Fatal("service did not stop")
	}
}

func TestService_Run_NotLoaded(t *testing.T) {
	env := newTestEnv(unlocked)
	env.agent.notLoaded = true

	err := env.service.Run(context.Background())

	assert.Equal(t, err, ErrAgentNotLoaded)
}

func TestService_Run_InitError(t *testing.T) {
	env := newTestEnv(unlocked)
	env.agent.initErr = errTest

	err := env.service.Run(context.Background())

	assert.Equal(t, err, errTest)
}

func TestService_ResetTriggers(t *testing.T) {
	cases := map[string]struct {
		trigger func(env *testEnv)
	}{
		"account switch": {
			trigger: func(env *testEnv) {
				env.accounts.set(vault.AccountStatus{UserID: "u2", Status: vault.Locked})
			},
		},
		"status stream error": {
			trigger: func(env *testEnv) {
				env.accounts.end(errTest)
			},
		},
		"status stream completion": {
			trigger: func(env *testEnv) {
				env.accounts.end(nil)
			},
		},
		"vault locked": {
			trigger: func(env *testEnv) {
				env.service.HandleVaultLocked(context.Background())
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			// The agent is enabled and the account locked, so the refresh
			// loop locks the agent and never clears its keys.
			env := newTestEnv(locked)
			env.service.AuthorizationCache().Remember("c1")
			stop := runService(t, env)
			env.accounts.waitForSubscribers(1)

			tc.trigger(env)

			expectSignal(t, env.agent.cleared, "keys to be cleared")
			assert.Equal(t, env.service.AuthorizationCache().Len(), 0)
			assert.NilError(t, stop())
		})
	}
}

func TestService_StatusChangeIsNoReset(t *testing.T) {
	env := newTestEnv(locked)
	env.service.AuthorizationCache().Remember("c1")
	stop := runService(t, env)
	env.accounts.waitForSubscribers(1)

	env.accounts.set(unlocked)
	env.accounts.set(locked)
	assert.NilError(t, stop())

	assert.Equal(t, len(env.agent.cleared), 0)
	assert.Equal(t, env.service.AuthorizationCache().Len(), 1)
}
