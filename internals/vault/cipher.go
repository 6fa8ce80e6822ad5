package vault

import (
	"time"

	"github.com/google/uuid"
)

// CipherType is the kind of item stored in a vault.
type CipherType int

// Cipher types, numbered as the vault file stores them.
const (
	CipherTypeLogin CipherType = iota + 1
	CipherTypeSecureNote
	CipherTypeCard
	CipherTypeIdentity
	CipherTypeSSHKey
)

func (t CipherType) String() string {
	switch t {
	case CipherTypeLogin:
		return "login"
	case CipherTypeSecureNote:
		return "secure-note"
	case CipherTypeCard:
		return "card"
	case CipherTypeIdentity:
		return "identity"
	case CipherTypeSSHKey:
		return "ssh-key"
	default:
		return "unknown"
	}
}

// Cipher is a decrypted vault item.
type Cipher struct {
	ID          string     `yaml:"id"`
	Type        CipherType `yaml:"type"`
	Name        string     `yaml:"name"`
	DeletedDate *time.Time `yaml:"deleted_date,omitempty"`
	SSHKey      *SSHKey    `yaml:"ssh_key,omitempty"`
	Notes       string     `yaml:"notes,omitempty"`
}

// SSHKey holds the key material of an SSH key item.
type SSHKey struct {
	PrivateKey  string `yaml:"private_key"`
	PublicKey   string `yaml:"public_key"`
	Fingerprint string `yaml:"fingerprint"`
}

// NewCipherID returns a fresh random identifier for a vault item.
func NewCipherID() string {
	return uuid.New().String()
}

// IsDeleted returns whether the item has been moved to the trash.
func (c Cipher) IsDeleted() bool {
	return c.DeletedDate != nil
}

// IsSSHKey returns whether the item is a usable SSH key.
func (c Cipher) IsSSHKey() bool {
	return c.Type == CipherTypeSSHKey && c.SSHKey != nil
}
