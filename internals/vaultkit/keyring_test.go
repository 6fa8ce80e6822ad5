package vaultkit

import (
	"testing"
	"time"

	"gotest.tools/assert"

	libkeyring "github.com/zalando/go-keyring"
)

var (
	testAccount    = "personal"
	testPassphrase = "test-passphrase"
	testTTL        = 15 * time.Second
)

func newTestKeyring() Keyring {
	libkeyring.MockInit()
	return NewKeyring()
}

func newTestKeyringItem() *KeyringItem {
	return &KeyringItem{
		ExpiresAt:  time.Now().UTC().Add(testTTL),
		Passphrase: testPassphrase,
	}
}

func TestPassphraseCacheSet_CleanupCalled(t *testing.T) {
	cleaner := &fakeKeyringCleaner{}
	cache := NewPassphraseCache(testAccount, testTTL, cleaner, newTestKeyring())

	err := cache.Set(testPassphrase)

	assert.NilError(t, err)
	assert.DeepEqual(t, cleaner.calls, []string{testAccount})
}

func TestPassphraseCacheSet_CleanupRunning(t *testing.T) {
	keyring := newTestKeyring()
	item := newTestKeyringItem()
	item.RunningCleanupProcess = true
	assert.NilError(t, keyring.Set(testAccount, item))
	cleaner := &fakeKeyringCleaner{}
	cache := NewPassphraseCache(testAccount, testTTL, cleaner, keyring)

	err := cache.Set("other")

	assert.NilError(t, err)
	assert.Equal(t, len(cleaner.calls), 0)
	actual, err := keyring.Get(testAccount)
	assert.NilError(t, err)
	assert.Equal(t, actual.Passphrase, "other")
}

func TestPassphraseCacheGet_Success(t *testing.T) {
	cache := NewPassphraseCache(testAccount, testTTL, &fakeKeyringCleaner{}, newTestKeyring())
	assert.NilError(t, cache.Set(testPassphrase))

	actual, err := cache.Get()

	assert.NilError(t, err)
	assert.Equal(t, actual, testPassphrase)
}

func TestPassphraseCacheGet_PerAccount(t *testing.T) {
	keyring := newTestKeyring()
	personal := NewPassphraseCache("personal", testTTL, &fakeKeyringCleaner{}, keyring)
	work := NewPassphraseCache("work", testTTL, &fakeKeyringCleaner{}, keyring)
	assert.NilError(t, personal.Set("personal-pass"))

	_, err := work.Get()

	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestPassphraseCacheGet_UpdatedAfterRead(t *testing.T) {
	keyring := newTestKeyring()
	cache := NewPassphraseCache(testAccount, testTTL, &fakeKeyringCleaner{}, keyring)
	assert.NilError(t, cache.Set(testPassphrase))

	expected, err := keyring.Get(testAccount)
	assert.NilError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = cache.Get()
	assert.NilError(t, err)

	actual, err := keyring.Get(testAccount)
	assert.NilError(t, err)
	assert.Assert(t, actual.ExpiresAt.After(expected.ExpiresAt), "passphrase expiry not extended after a read")
}

func TestPassphraseCacheGet_NonExisting(t *testing.T) {
	cache := NewPassphraseCache(testAccount, testTTL, &fakeKeyringCleaner{}, newTestKeyring())

	_, err := cache.Get()

	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestPassphraseCacheGet_Expired(t *testing.T) {
	keyring := newTestKeyring()
	cache := NewPassphraseCache(testAccount, testTTL, &fakeKeyringCleaner{}, keyring)
	assert.NilError(t, keyring.Set(testAccount, &KeyringItem{
		ExpiresAt:  time.Now().Add(-10 * time.Millisecond),
		Passphrase: testPassphrase,
	}))

	actual, err := cache.Get()

	assert.Equal(t, actual, "")
	assert.Equal(t, err, ErrKeyringItemNotFound)
	_, err = keyring.Get(testAccount)
	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestPassphraseCache_IsEnabled(t *testing.T) {
	cases := map[string]struct {
		ttl      time.Duration
		expected bool
	}{
		"ttl set": {
			ttl:      testTTL,
			expected: true,
		},
		"no ttl": {
			ttl:      0,
			expected: false,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cache := NewPassphraseCache(testAccount, tc.ttl, &fakeKeyringCleaner{}, newTestKeyring())

			assert.Equal(t, cache.IsEnabled(), tc.expected)
		})
	}
}

func TestKeyring_Get(t *testing.T) {
	keyring := newTestKeyring()
	expected := newTestKeyringItem()
	assert.NilError(t, keyring.Set(testAccount, expected))

	actual, err := keyring.Get(testAccount)

	assert.NilError(t, err)
	assert.Equal(t, actual.Passphrase, expected.Passphrase)
	assert.Assert(t, actual.ExpiresAt.Equal(expected.ExpiresAt))
	assert.Equal(t, actual.RunningCleanupProcess, false)
}

func TestKeyring_Get_NonExisting(t *testing.T) {
	keyring := newTestKeyring()

	_, err := keyring.Get(testAccount)

	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestKeyring_Delete(t *testing.T) {
	cases := map[string]struct {
		set      bool
		expected error
	}{
		"existing": {
			set: true,
		},
		"non existing": {
			expected: ErrKeyringItemNotFound,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			keyring := newTestKeyring()
			if tc.set {
				assert.NilError(t, keyring.Set(testAccount, newTestKeyringItem()))
			}

			err := keyring.Delete(testAccount)

			assert.Equal(t, err, tc.expected)
		})
	}
}

func TestKeyringClearCommand_Now(t *testing.T) {
	env := newTestEnv(t)
	assert.NilError(t, env.keyring.Set(testAccount, newTestKeyringItem()))
	cmd := NewKeyringClearCommand(env.Env)
	cmd.account.Param = testAccount
	cmd.now = true

	err := cmd.Run()

	assert.NilError(t, err)
	_, err = env.keyring.Get(testAccount)
	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestKeyringClearCommand_Expired(t *testing.T) {
	env := newTestEnv(t)
	assert.NilError(t, env.keyring.Set(testAccount, &KeyringItem{
		ExpiresAt:  time.Now().Add(-time.Second),
		Passphrase: testPassphrase,
	}))
	cmd := NewKeyringClearCommand(env.Env)
	cmd.account.Param = testAccount

	err := cmd.Run()

	assert.NilError(t, err)
	_, err = env.keyring.Get(testAccount)
	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestKeyringClearCommand_WaitsForExpiry(t *testing.T) {
	env := newTestEnv(t)
	assert.NilError(t, env.keyring.Set(testAccount, &KeyringItem{
		ExpiresAt:  time.Now().Add(50 * time.Millisecond),
		Passphrase: testPassphrase,
	}))
	cmd := NewKeyringClearCommand(env.Env)
	cmd.account.Param = testAccount

	err := cmd.Run()

	assert.NilError(t, err)
	_, err = env.keyring.Get(testAccount)
	assert.Equal(t, err, ErrKeyringItemNotFound)
}

func TestKeyringClearCommand_NothingCached(t *testing.T) {
	env := newTestEnv(t)
	cmd := NewKeyringClearCommand(env.Env)
	cmd.account.Param = testAccount

	err := cmd.Run()

	assert.NilError(t, err)
}
