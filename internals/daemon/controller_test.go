package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gotest.tools/assert"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
	"github.com/vaultkit/vaultkit-cli/internals/settings"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

type fakeLockHandler struct {
	mu    sync.Mutex
	calls int
}

func (h *fakeLockHandler) HandleVaultLocked(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
}

func (h *fakeLockHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type testEnv struct {
	controller *Controller
	handler    http.Handler
	manager    *vault.Manager
	settings   *settings.File
	locks      *fakeLockHandler
	clock      *clocktesting.FakeClock
}

func newTestEnv(t *testing.T, timeout time.Duration) *testEnv {
	t.Helper()

	dir := t.TempDir()
	store := vault.NewStore(dir)
	store.SetWorkFactor(10)
	for _, account := range []string{"personal", "work"} {
		_, err := store.Create(account, account+"-pass")
		assert.NilError(t, err)
	}

	env := &testEnv{
		manager:  vault.NewManager(store, "personal"),
		settings: settings.NewFile(dir),
		locks:    &fakeLockHandler{},
		clock:    clocktesting.NewFakeClock(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	env.controller = NewController(context.Background(), Config{
		Version:      "v1.2.3",
		Accounts:     env.manager,
		Store:        store,
		Settings:     env.settings,
		LockHandler:  env.locks,
		Cache:        sshagent.NewAuthorizationCache(env.clock),
		AgentSocket:  "/tmp/ssh-agent.sock",
		VaultTimeout: timeout,
		Clock:        env.clock,
		Logger:       cli.NewLoggerTo(ioutil.Discard),
	})
	env.handler = env.controller.Handler()
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, in interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		assert.NilError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func TestController_Version(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/version", nil)

	assert.Equal(t, rec.Code, http.StatusOK)
	var resp protocol.VersionResponse
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, resp.Version, "v1.2.3")
}

func TestController_Unlock(t *testing.T) {
	cases := map[string]struct {
		req      protocol.UnlockRequest
		code     int
		unlocked bool
	}{
		"success": {
			req:      protocol.UnlockRequest{Account: "work", Passphrase: "work-pass"},
			code:     http.StatusOK,
			unlocked: true,
		},
		"wrong passphrase": {
			req:  protocol.UnlockRequest{Account: "work", Passphrase: "nope"},
			code: http.StatusForbidden,
		},
		"unknown account": {
			req:  protocol.UnlockRequest{Account: "other", Passphrase: "nope"},
			code: http.StatusNotFound,
		},
		"invalid account": {
			req:  protocol.UnlockRequest{Account: "../work", Passphrase: "work-pass"},
			code: http.StatusBadRequest,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, 0)

			rec := env.do(t, http.MethodPost, "/unlock", tc.req)

			assert.Equal(t, rec.Code, tc.code)
			assert.Equal(t, env.manager.Status("work") == vault.Unlocked, tc.unlocked)
		})
	}
}

func TestController_Unlock_PersistsActiveAccount(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/unlock", protocol.UnlockRequest{Account: "personal", Passphrase: "personal-pass"})
	assert.Equal(t, rec.Code, http.StatusOK)

	active, err := env.settings.ActiveAccount()
	assert.NilError(t, err)
	assert.Equal(t, active, "personal")
}

func TestController_Lock(t *testing.T) {
	cases := map[string]struct {
		account  string
		code     int
		locked   []string
		personal vault.AuthStatus
		work     vault.AuthStatus
	}{
		"all": {
			account:  "",
			code:     http.StatusOK,
			personal: vault.Locked,
			work:     vault.Locked,
		},
		"one": {
			account:  "work",
			code:     http.StatusOK,
			locked:   []string{"work"},
			personal: vault.Unlocked,
			work:     vault.Locked,
		},
		"unknown": {
			account:  "other",
			code:     http.StatusNotFound,
			personal: vault.Unlocked,
			work:     vault.Unlocked,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, 0)
			ctx := context.Background()
			assert.NilError(t, env.manager.Unlock(ctx, "personal", "personal-pass"))
			assert.NilError(t, env.manager.Unlock(ctx, "work", "work-pass"))

			rec := env.do(t, http.MethodPost, "/lock", protocol.LockRequest{Account: tc.account})

			assert.Equal(t, rec.Code, tc.code)
			assert.Equal(t, env.manager.Status("personal"), tc.personal)
			assert.Equal(t, env.manager.Status("work"), tc.work)
			if tc.code != http.StatusOK {
				assert.Equal(t, env.locks.count(), 0)
				return
			}
			assert.Equal(t, env.locks.count(), 1)

			var resp protocol.LockResponse
			assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			if tc.locked != nil {
				assert.DeepEqual(t, resp.Locked, tc.locked)
			} else {
				assert.Equal(t, len(resp.Locked), 2)
			}
		})
	}
}

func TestController_Lock_NothingUnlocked(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/lock", protocol.LockRequest{})

	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, env.locks.count(), 1)
}

func TestController_Switch(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/switch", protocol.SwitchRequest{Account: "work"})

	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, env.manager.Active(), "work")
	active, err := env.settings.ActiveAccount()
	assert.NilError(t, err)
	assert.Equal(t, active, "work")

	rec = env.do(t, http.MethodPost, "/switch", protocol.SwitchRequest{Account: "other"})
	assert.Equal(t, rec.Code, http.StatusNotFound)
	assert.Equal(t, env.manager.Active(), "work")
}

func TestController_BadRequest(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, path := range []string{"/unlock", "/lock", "/switch"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, rec.Code, http.StatusBadRequest, path)
	}
}

func TestController_Status(t *testing.T) {
	env := newTestEnv(t, 10*time.Minute)
	err := env.settings.Update(func(s *settings.Settings) error {
		s.SSHAgentEnabled = true
		s.SSHAgentPromptBehavior = sshagent.PromptRememberUntilLock
		return nil
	})
	assert.NilError(t, err)

	rec := env.do(t, http.MethodPost, "/unlock", protocol.UnlockRequest{Account: "work", Passphrase: "work-pass"})
	assert.Equal(t, rec.Code, http.StatusOK)
	env.clock.Step(time.Minute)

	rec = env.do(t, http.MethodGet, "/status", nil)

	assert.Equal(t, rec.Code, http.StatusOK)
	var resp protocol.StatusResponse
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, resp.Version, "v1.2.3")
	assert.DeepEqual(t, resp.Accounts, []protocol.AccountStatus{
		{Name: "personal", Status: vault.Locked.String(), Active: true},
		{Name: "work", Status: vault.Unlocked.String(), LocksIn: 540},
	})
	assert.DeepEqual(t, resp.SSHAgent, protocol.SSHAgentStatus{
		Enabled:        true,
		Socket:         "/tmp/ssh-agent.sock",
		PromptBehavior: "remember_until_lock",
	})
}

func TestController_VaultTimeout(t *testing.T) {
	env := newTestEnv(t, 5*time.Minute)

	rec := env.do(t, http.MethodPost, "/unlock", protocol.UnlockRequest{Account: "work", Passphrase: "work-pass"})
	assert.Equal(t, rec.Code, http.StatusOK)

	env.clock.Step(4 * time.Minute)
	assert.Equal(t, env.manager.Status("work"), vault.Unlocked)
	assert.Equal(t, env.locks.count(), 0)

	env.clock.Step(time.Minute)
	waitFor(t, func() bool { return env.locks.count() == 1 })
	assert.Equal(t, env.manager.Status("work"), vault.Locked)
}

func TestController_VaultTimeout_ManualLockStopsTimer(t *testing.T) {
	env := newTestEnv(t, 5*time.Minute)

	rec := env.do(t, http.MethodPost, "/unlock", protocol.UnlockRequest{Account: "work", Passphrase: "work-pass"})
	assert.Equal(t, rec.Code, http.StatusOK)
	rec = env.do(t, http.MethodPost, "/lock", protocol.LockRequest{Account: "work"})
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, env.locks.count(), 1)

	env.clock.Step(10 * time.Minute)

	assert.Equal(t, env.locks.count(), 1)
	assert.Assert(t, !env.clock.HasWaiters())
}

func TestController_VaultTimeout_Disabled(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/unlock", protocol.UnlockRequest{Account: "work", Passphrase: "work-pass"})
	assert.Equal(t, rec.Code, http.StatusOK)

	assert.Assert(t, !env.clock.HasWaiters())
}
