package vault

import (
	"context"
	"sync"

	"github.com/secrethub/secrethub-go/internals/errio"
)

// ErrManagerClosed is returned when the manager is used after it was closed.
var ErrManagerClosed = errVault.Code("manager_closed").Error("the vault manager is closed")

// Manager keeps track of the active account and the vaults that are unlocked
// in memory. It is safe for concurrent use.
type Manager struct {
	store *Store

	mu       sync.Mutex
	active   string
	unlocked map[string]*Vault
	subs     map[*subscription]struct{}
	closed   bool
	closeErr error
}

// NewManager creates a manager for the accounts in store, with active as the
// active account. All vaults start locked.
func NewManager(store *Store, active string) *Manager {
	return &Manager{
		store:    store,
		active:   active,
		unlocked: make(map[string]*Vault),
		subs:     make(map[*subscription]struct{}),
	}
}

// Active returns the name of the active account.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// ActiveStatus returns the active account and its current status.
func (m *Manager) ActiveStatus(ctx context.Context) (AccountStatus, error) {
	if err := ctx.Err(); err != nil {
		return AccountStatus{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return AccountStatus{}, ErrManagerClosed
	}
	return m.activeStatus(), nil
}

// Status returns the status of any account.
func (m *Manager) Status(account string) AuthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status(account)
}

func (m *Manager) status(account string) AuthStatus {
	if _, ok := m.unlocked[account]; ok {
		return Unlocked
	}
	if account == "" || !m.store.Exists(account) {
		return LoggedOut
	}
	return Locked
}

func (m *Manager) activeStatus() AccountStatus {
	return AccountStatus{
		UserID: m.active,
		Status: m.status(m.active),
	}
}

// Subscribe returns a stream of changes to the active account or its status.
func (m *Manager) Subscribe() StatusSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := newSubscription(m.unsubscribe)
	if m.closed {
		sub.finish(m.closeErr)
		return sub
	}
	sub.push(m.activeStatus())
	m.subs[sub] = struct{}{}
	return sub
}

func (m *Manager) unsubscribe(sub *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, sub)
}

// notify must be called with m.mu held.
func (m *Manager) notify() {
	status := m.activeStatus()
	for sub := range m.subs {
		sub.push(status)
	}
}

// Unlock decrypts the vault of the account and keeps it in memory. When no
// account is active yet, the account becomes the active one.
func (m *Manager) Unlock(ctx context.Context, account, passphrase string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v, err := m.store.Open(account, passphrase)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.unlocked[account] = v
	if m.active == "" {
		m.active = account
	}
	m.notify()
	return nil
}

// Lock removes the decrypted vault of the account from memory.
// It returns whether the account was unlocked.
func (m *Manager) Lock(account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.unlocked[account]
	if !ok {
		return false
	}
	delete(m.unlocked, account)
	m.notify()
	return true
}

// LockAll locks every unlocked account and returns the accounts that were locked.
func (m *Manager) LockAll() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	locked := make([]string, 0, len(m.unlocked))
	for account := range m.unlocked {
		locked = append(locked, account)
	}
	m.unlocked = make(map[string]*Vault)
	if len(locked) > 0 {
		m.notify()
	}
	return locked
}

// Switch makes account the active account.
func (m *Manager) Switch(account string) error {
	if !m.store.Exists(account) {
		return ErrAccountNotFound(account)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == account {
		return nil
	}
	m.active = account
	m.notify()
	return nil
}

// GetAllDecrypted returns a copy of all items in the vault of the account.
// Changes made to the vault file by other processes are picked up.
func (m *Manager) GetAllDecrypted(ctx context.Context, account string) ([]Cipher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.unlocked[account]
	if !ok {
		return nil, ErrVaultLocked(account)
	}
	_, err := m.store.Reload(v)
	if err != nil {
		return nil, errio.Error(err)
	}

	ciphers := make([]Cipher, len(v.Ciphers))
	copy(ciphers, v.Ciphers)
	return ciphers, nil
}

// Close ends all subscriptions. A nil err completes them normally.
func (m *Manager) Close(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.closeErr = err
	m.unlocked = make(map[string]*Vault)
	for sub := range m.subs {
		sub.finish(err)
	}
	m.subs = make(map[*subscription]struct{})
}
