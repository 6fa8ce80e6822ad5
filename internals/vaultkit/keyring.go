package vaultkit

import (
	"encoding/json"
	"time"

	libkeyring "github.com/zalando/go-keyring"

	"github.com/vaultkit/vaultkit-cli/internals/cli/cloneproc"
)

// Errors
var (
	ErrKeyringItemNotFound           = errMain.Code("keyring_not_found").Error("item not found in keyring")
	ErrCannotGetKeyringItem          = errMain.Code("cannot_get_keyring").ErrorPref("cannot get passphrase from keyring: %s")
	ErrCannotSetKeyringItem          = errMain.Code("cannot_set_keyring").ErrorPref("cannot set passphrase in keyring: %s")
	ErrCannotDeleteKeyringItem       = errMain.Code("cannot_delete_keyring").ErrorPref("cannot delete passphrase from keyring: %s")
	ErrCannotClearExpiredKeyringItem = errMain.Code("cannot_clear_expired_keyring_item").ErrorPref("cannot clear expired keyring item: %s")
)

const (
	keyringServiceLabel = "vaultkit"
	keyringKeyPrefix    = "vaultkit-passphrase-"
)

// PassphraseCache caches the passphrase of an account in a keyring for a given time to live.
type PassphraseCache struct {
	account string
	keyring Keyring
	ttl     time.Duration
	cleaner KeyringCleaner
}

// NewPassphraseCache returns a PassphraseCache initialised with the given arguments.
func NewPassphraseCache(account string, ttl time.Duration, cleaner KeyringCleaner, keyring Keyring) *PassphraseCache {
	return &PassphraseCache{
		account: account,
		keyring: keyring,
		ttl:     ttl,
		cleaner: cleaner,
	}
}

// IsEnabled determines whether passphrases can be cached.
func (c PassphraseCache) IsEnabled() bool {
	return c.ttl > 0 && c.keyring.IsAvailable()
}

// Set caches the passphrase for the configured time to live.
func (c PassphraseCache) Set(passphrase string) error {
	item, err := c.keyring.Get(c.account)
	if err == ErrKeyringItemNotFound {
		item = &KeyringItem{}
	} else if err != nil {
		return err
	}
	item.Passphrase = passphrase

	if !item.RunningCleanupProcess {
		err = c.cleaner.Cleanup(c.account)
		if err != nil {
			return err
		}
	}

	item.ExpiresAt = c.ExpiresAt()

	return c.keyring.Set(c.account, item)
}

// Get returns the cached passphrase. Every call to Get resets the time to live of the passphrase.
func (c PassphraseCache) Get() (string, error) {
	item, err := c.keyring.Get(c.account)
	if err != nil {
		return "", err
	}

	if item.IsExpired() {
		err := c.keyring.Delete(c.account)
		if err != nil && err != ErrKeyringItemNotFound {
			return "", ErrCannotClearExpiredKeyringItem(err)
		}
		return "", ErrKeyringItemNotFound
	}

	if !item.RunningCleanupProcess {
		err = c.cleaner.Cleanup(c.account)
		if err != nil {
			return "", err
		}
	}

	item.ExpiresAt = c.ExpiresAt()

	err = c.keyring.Set(c.account, item)
	if err != nil {
		return "", err
	}

	return item.Passphrase, nil
}

// Delete removes the cached passphrase.
func (c PassphraseCache) Delete() error {
	return c.keyring.Delete(c.account)
}

// ExpiresAt returns a timestamp to expire a keyring item at.
func (c PassphraseCache) ExpiresAt() time.Time {
	return time.Now().UTC().Add(c.ttl)
}

// KeyringItem wraps a passphrase with metadata to be stored the keyring.
type KeyringItem struct {
	RunningCleanupProcess bool      `json:"running_cleanup_process,omitempty"`
	ExpiresAt             time.Time `json:"expires_at"`
	Passphrase            string    `json:"passphrase"`
}

// IsExpired returns true when the item has expired.
func (ki KeyringItem) IsExpired() bool {
	return time.Now().After(ki.ExpiresAt)
}

// Keyring is an OS-agnostic interface for setting, getting and
// deleting passphrases from the system keyring.
type Keyring interface {
	IsAvailable() bool
	Get(account string) (*KeyringItem, error)
	Set(account string, item *KeyringItem) error
	Delete(account string) error
}

// keyring implements Keyring interface by using libkeyring.
type keyring struct {
	label string
}

// NewKeyring returns a Keyring backed by the keyring of the OS.
func NewKeyring() Keyring {
	return &keyring{
		label: keyringServiceLabel,
	}
}

// IsAvailable returns true when the OS keyring is available.
// On some operating systems it may not be installed.
func (kr keyring) IsAvailable() bool {
	_, err := libkeyring.Get(kr.label, "keyring_availability_check")
	return err == libkeyring.ErrNotFound || err == nil
}

func (kr keyring) Get(account string) (*KeyringItem, error) {
	stored, err := libkeyring.Get(kr.label, keyringKeyPrefix+account)
	if err == libkeyring.ErrNotFound {
		return nil, ErrKeyringItemNotFound
	} else if err != nil {
		return nil, ErrCannotGetKeyringItem(err)
	}

	item := &KeyringItem{}
	err = json.Unmarshal([]byte(stored), item)
	if err != nil {
		return nil, ErrCannotGetKeyringItem(err)
	}

	return item, nil
}

func (kr keyring) Set(account string, item *KeyringItem) error {
	bytes, err := json.Marshal(item)
	if err != nil {
		return ErrCannotSetKeyringItem(err)
	}

	err = libkeyring.Set(kr.label, keyringKeyPrefix+account, string(bytes))
	if err != nil {
		return ErrCannotSetKeyringItem(err)
	}

	return nil
}

func (kr keyring) Delete(account string) error {
	err := libkeyring.Delete(kr.label, keyringKeyPrefix+account)
	if err == libkeyring.ErrNotFound {
		return ErrKeyringItemNotFound
	} else if err != nil {
		return ErrCannotDeleteKeyringItem(err)
	}

	return nil
}

// KeyringCleaner is used to remove items from a keyring.
type KeyringCleaner interface {
	// Cleanup removes the item of the account from the keyring when it expires.
	Cleanup(account string) error
}

// keyringCleaner cleans up the passphrase by spawning a new CLI process that will take care of cleaning it up.
type keyringCleaner struct{}

// NewKeyringCleaner returns a new KeyringCleaner.
func NewKeyringCleaner() KeyringCleaner {
	return &keyringCleaner{}
}

// Cleanup starts a process that clears the cached passphrase when it expires.
func (kc keyringCleaner) Cleanup(account string) error {
	return cloneproc.Spawn("keyring", "clear", account)
}
