// Package vault keeps SSH keys and other items in age-encrypted files,
// one per account, and tracks which accounts are unlocked.
package vault

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/zombiezen/cardcpx/natsort"
	"filippo.io/age"
	"github.com/secrethub/secrethub-go/internals/errio"
	yaml "gopkg.in/yaml.v2"
)

const (
	fileExtension = ".age"
	fileVersion   = 1
)

// Errors
var (
	errVault = errio.Namespace("vault")

	ErrAccountNotFound    = errVault.Code("account_not_found").ErrorPref("account %s does not exist")
	ErrAccountExists      = errVault.Code("account_exists").ErrorPref("account %s already exists")
	ErrInvalidAccountName = errVault.Code("invalid_account_name").ErrorPref("invalid account name %q: use letters, digits, dots, dashes and underscores")
	ErrWrongPassphrase    = errVault.Code("wrong_passphrase").Error("the passphrase is incorrect")
	ErrEmptyPassphrase    = errVault.Code("empty_passphrase").Error("the passphrase cannot be empty")
	ErrVaultLocked        = errVault.Code("vault_locked").ErrorPref("the vault of account %s is locked")
	ErrCipherNotFound     = errVault.Code("cipher_not_found").ErrorPref("no item found matching %s")
	ErrUnsupportedVersion = errVault.Code("unsupported_version").ErrorPref("vault file version %d is not supported")
)

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateAccountName checks whether name can be used as an account name.
func ValidateAccountName(name string) error {
	if !accountNamePattern.MatchString(name) {
		return ErrInvalidAccountName(name)
	}
	return nil
}

// document is the plaintext content of a vault file.
type document struct {
	Version int      `yaml:"version"`
	Account string   `yaml:"account"`
	Ciphers []Cipher `yaml:"ciphers"`
}

// Store reads and writes the encrypted vault files in a directory.
type Store struct {
	dir        string
	workFactor int
}

// NewStore returns a Store keeping its files in dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// SetWorkFactor sets the scrypt work factor (log2 N) used for new encryptions.
// Zero keeps the default of the age library.
func (s *Store) SetWorkFactor(logN int) {
	s.workFactor = logN
}

func (s *Store) path(account string) string {
	return filepath.Join(s.dir, account+fileExtension)
}

// Accounts returns the names of all accounts with a vault file, naturally sorted.
func (s *Store) Accounts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errio.Error(err)
	}

	accounts := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		accounts = append(accounts, strings.TrimSuffix(name, fileExtension))
	}
	natsort.Strings(accounts)
	return accounts, nil
}

// Exists returns whether a vault file exists for the account.
func (s *Store) Exists(account string) bool {
	_, err := os.Stat(s.path(account))
	return err == nil
}

// Create writes a new, empty vault for the account.
func (s *Store) Create(account, passphrase string) (*Vault, error) {
	err := ValidateAccountName(account)
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if s.Exists(account) {
		return nil, ErrAccountExists(account)
	}

	v := &Vault{
		Account:    account,
		Ciphers:    []Cipher{},
		passphrase: passphrase,
	}
	err = s.Save(v)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Open decrypts the vault of the account.
func (s *Store) Open(account, passphrase string) (*Vault, error) {
	info, err := os.Stat(s.path(account))
	if os.IsNotExist(err) {
		return nil, ErrAccountNotFound(account)
	} else if err != nil {
		return nil, errio.Error(err)
	}

	doc, err := s.decrypt(account, passphrase)
	if err != nil {
		return nil, err
	}

	return &Vault{
		Account:    account,
		Ciphers:    doc.Ciphers,
		passphrase: passphrase,
		modTime:    info.ModTime(),
	}, nil
}

// Reload re-reads the vault file when it was changed on disk after v was read.
// It returns whether the vault was reloaded.
func (s *Store) Reload(v *Vault) (bool, error) {
	info, err := os.Stat(s.path(v.Account))
	if os.IsNotExist(err) {
		return false, ErrAccountNotFound(v.Account)
	} else if err != nil {
		return false, errio.Error(err)
	}
	if info.ModTime().Equal(v.modTime) {
		return false, nil
	}

	doc, err := s.decrypt(v.Account, v.passphrase)
	if err != nil {
		return false, err
	}
	v.Ciphers = doc.Ciphers
	v.modTime = info.ModTime()
	return true, nil
}

// Save encrypts the vault with its passphrase and replaces the file on disk.
func (s *Store) Save(v *Vault) error {
	plaintext, err := yaml.Marshal(document{
		Version: fileVersion,
		Account: v.Account,
		Ciphers: v.Ciphers,
	})
	if err != nil {
		return errio.Error(err)
	}

	recipient, err := age.NewScryptRecipient(v.passphrase)
	if err != nil {
		return errio.Error(err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var ciphertext bytes.Buffer
	w, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return errio.Error(err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return errio.Error(err)
	}
	if err := w.Close(); err != nil {
		return errio.Error(err)
	}

	err = os.MkdirAll(s.dir, 0700)
	if err != nil {
		return errio.Error(err)
	}

	path := s.path(v.Account)
	tmp := path + ".tmp"
	err = os.WriteFile(tmp, ciphertext.Bytes(), 0600)
	if err != nil {
		return errio.Error(err)
	}
	err = os.Rename(tmp, path)
	if err != nil {
		return errio.Error(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return errio.Error(err)
	}
	v.modTime = info.ModTime()
	return nil
}

// Delete removes the vault file of the account.
func (s *Store) Delete(account string) error {
	err := os.Remove(s.path(account))
	if os.IsNotExist(err) {
		return ErrAccountNotFound(account)
	}
	return err
}

func (s *Store) decrypt(account, passphrase string) (*document, error) {
	ciphertext, err := os.ReadFile(s.path(account))
	if err != nil {
		return nil, errio.Error(err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, ErrEmptyPassphrase
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) {
			return nil, ErrWrongPassphrase
		}
		return nil, errio.Error(err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, errio.Error(err)
	}

	var doc document
	err = yaml.Unmarshal(plaintext, &doc)
	if err != nil {
		return nil, errio.Error(err)
	}
	if doc.Version != fileVersion {
		return nil, ErrUnsupportedVersion(doc.Version)
	}
	return &doc, nil
}

// Vault is the decrypted content of one account.
type Vault struct {
	Account string
	Ciphers []Cipher

	passphrase string
	modTime    time.Time
}

// Add appends an item to the vault.
func (v *Vault) Add(c Cipher) {
	v.Ciphers = append(v.Ciphers, c)
}

// Find returns the item with the given id, or the single non-deleted item
// with the given name.
func (v *Vault) Find(idOrName string) (*Cipher, error) {
	var match *Cipher
	for i := range v.Ciphers {
		c := &v.Ciphers[i]
		if c.ID == idOrName {
			return c, nil
		}
		if c.Name == idOrName && !c.IsDeleted() {
			if match != nil {
				return nil, errVault.Code("ambiguous_name").Errorf("multiple items are named %s, use the id instead", idOrName)
			}
			match = c
		}
	}
	if match == nil {
		return nil, ErrCipherNotFound(idOrName)
	}
	return match, nil
}

// Trash marks an item as deleted.
func (v *Vault) Trash(idOrName string, at time.Time) error {
	c, err := v.Find(idOrName)
	if err != nil {
		return err
	}
	c.DeletedDate = &at
	return nil
}

// ChangePassphrase sets the passphrase used the next time the vault is saved.
func (v *Vault) ChangePassphrase(passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	v.passphrase = passphrase
	return nil
}
