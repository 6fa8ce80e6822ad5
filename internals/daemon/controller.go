package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"k8s.io/utils/clock"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/daemon/protocol"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

// Accounts is the account state controlled through the socket.
type Accounts interface {
	Active() string
	Status(account string) vault.AuthStatus
	Unlock(ctx context.Context, account, passphrase string) error
	Lock(account string) bool
	LockAll() []string
	Switch(account string) error
}

// Store lists the accounts that have a vault.
type Store interface {
	Accounts() ([]string, error)
	Exists(account string) bool
}

// Settings are the preferences reported and updated by the controller.
type Settings interface {
	SSHAgentEnabled(ctx context.Context) (bool, error)
	PromptBehavior(ctx context.Context) (sshagent.PromptBehavior, error)
	SetActiveAccount(account string) error
}

// LockHandler is told when the user locks a vault.
type LockHandler interface {
	HandleVaultLocked(ctx context.Context)
}

// Config holds the dependencies of the controller.
type Config struct {
	Version      string
	Accounts     Accounts
	Store        Store
	Settings     Settings
	LockHandler  LockHandler
	Cache        *sshagent.AuthorizationCache
	AgentSocket  string
	VaultTimeout time.Duration
	Clock        clock.WithDelayedExecution
	Logger       cli.Logger
}

// Controller serves the control API of the agent.
type Controller struct {
	cfg      Config
	ctx      context.Context
	autoLock *autoLocker
}

// NewController creates a Controller. Locks triggered by the vault timeout
// use ctx.
func NewController(ctx context.Context, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	c := &Controller{
		cfg: cfg,
		ctx: ctx,
	}
	c.autoLock = newAutoLocker(cfg.VaultTimeout, cfg.Clock, c.expire)
	return c
}

// Handler returns the routes of the control API.
func (c *Controller) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/version", c.Version)
	r.Get("/status", c.Status)
	r.Post("/unlock", c.Unlock)
	r.Post("/lock", c.Lock)
	r.Post("/switch", c.Switch)

	return r
}

// Close stops the pending vault timeouts.
func (c *Controller) Close() {
	c.autoLock.stopAll()
}

func (c *Controller) Version(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, protocol.VersionResponse{
		Version: c.cfg.Version,
	})
}

func (c *Controller) Status(w http.ResponseWriter, r *http.Request) {
	accounts, err := c.cfg.Store.Accounts()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	active := c.cfg.Accounts.Active()
	resp := protocol.StatusResponse{
		Version:  c.cfg.Version,
		PID:      os.Getpid(),
		Accounts: make([]protocol.AccountStatus, 0, len(accounts)),
		SSHAgent: protocol.SSHAgentStatus{
			Socket: c.cfg.AgentSocket,
		},
	}
	for _, account := range accounts {
		status := protocol.AccountStatus{
			Name:   account,
			Status: c.cfg.Accounts.Status(account).String(),
			Active: account == active,
		}
		if remaining, ok := c.autoLock.remaining(account); ok {
			status.LocksIn = int64(remaining / time.Second)
		}
		resp.Accounts = append(resp.Accounts, status)
	}

	enabled, err := c.cfg.Settings.SSHAgentEnabled(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	behavior, err := c.cfg.Settings.PromptBehavior(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	resp.SSHAgent.Enabled = enabled
	resp.SSHAgent.PromptBehavior = string(behavior)
	if c.cfg.Cache != nil {
		resp.SSHAgent.Remembered = c.cfg.Cache.Len()
	}

	respondJSON(w, http.StatusOK, resp)
}

func (c *Controller) Unlock(w http.ResponseWriter, r *http.Request) {
	var req protocol.UnlockRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !c.checkAccount(w, req.Account) {
		return
	}

	err = c.cfg.Accounts.Unlock(r.Context(), req.Account, req.Passphrase)
	if err == vault.ErrWrongPassphrase {
		respondError(w, http.StatusForbidden, err)
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	c.cfg.Logger.Infof("unlocked account %s", req.Account)

	c.autoLock.start(req.Account)
	c.persistActive()
	respondJSON(w, http.StatusOK, nil)
}

func (c *Controller) Lock(w http.ResponseWriter, r *http.Request) {
	var req protocol.LockRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var locked []string
	if req.Account == "" {
		locked = c.cfg.Accounts.LockAll()
		c.autoLock.stopAll()
	} else {
		if !c.checkAccount(w, req.Account) {
			return
		}
		if c.cfg.Accounts.Lock(req.Account) {
			locked = append(locked, req.Account)
		}
		c.autoLock.stop(req.Account)
	}

	c.cfg.Logger.Infof("locked %d account(s)", len(locked))
	c.cfg.LockHandler.HandleVaultLocked(r.Context())
	respondJSON(w, http.StatusOK, protocol.LockResponse{
		Locked: locked,
	})
}

func (c *Controller) Switch(w http.ResponseWriter, r *http.Request) {
	var req protocol.SwitchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if !c.checkAccount(w, req.Account) {
		return
	}

	err = c.cfg.Accounts.Switch(req.Account)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	c.cfg.Logger.Infof("switched to account %s", req.Account)

	c.persistActive()
	respondJSON(w, http.StatusOK, nil)
}

// expire locks an account whose vault timeout passed.
func (c *Controller) expire(account string) {
	if !c.cfg.Accounts.Lock(account) {
		return
	}
	c.cfg.Logger.Infof("vault timeout of account %s passed", account)
	c.cfg.LockHandler.HandleVaultLocked(c.ctx)
}

func (c *Controller) checkAccount(w http.ResponseWriter, account string) bool {
	err := vault.ValidateAccountName(account)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return false
	}
	if !c.cfg.Store.Exists(account) {
		respondError(w, http.StatusNotFound, vault.ErrAccountNotFound(account))
		return false
	}
	return true
}

func (c *Controller) persistActive() {
	err := c.cfg.Settings.SetActiveAccount(c.cfg.Accounts.Active())
	if err != nil {
		c.cfg.Logger.Warningf("could not save the active account: %s", err)
	}
}

func respondJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(js)+1))
	w.WriteHeader(code)
	_, _ = w.Write(js)
	_, _ = w.Write([]byte("\n"))
}

func respondError(w http.ResponseWriter, code int, err error) {
	respondJSON(w, code, protocol.ErrorResponse{
		Error: err.Error(),
	})
}
