package native

import (
	"bytes"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
)

const (
	extensionSessionBind = "session-bind@openssh.com"

	sshsigMagic = "SSHSIG"
)

// session is the agent as seen by one client connection.
type session struct {
	agent       *Agent
	processName string

	mu        sync.Mutex
	forwarded bool
}

var _ agent.ExtendedAgent = (*session)(nil)

// List returns the keys of the agent. When the agent is locked, the user is
// asked to unlock it first.
func (s *session) List() ([]*agent.Key, error) {
	if s.agent.isLocked() {
		approved := s.agent.request(sshagent.SignRequest{
			IsListRequest:     true,
			IsAgentForwarding: s.isForwarded(),
			ProcessName:       s.processName,
		})
		if !approved || s.agent.isLocked() {
			return []*agent.Key{}, nil
		}
	}
	return s.agent.publicKeys(), nil
}

func (s *session) Sign(key ssh.PublicKey, data []byte) (*ssh.Signature, error) {
	return s.SignWithFlags(key, data, 0)
}

// SignWithFlags signs data once the use of the key is approved.
func (s *session) SignWithFlags(key ssh.PublicKey, data []byte, flags agent.SignatureFlags) (*ssh.Signature, error) {
	e, ok := s.agent.find(key)
	if !ok {
		return nil, ErrKeyNotFound
	}

	approved := s.agent.request(sshagent.SignRequest{
		CipherID:          e.key.CipherID,
		IsAgentForwarding: s.isForwarded(),
		ProcessName:       s.processName,
		Namespace:         parseNamespace(data),
	})
	if !approved {
		return nil, ErrRequestDenied
	}

	// The keys may have been replaced while waiting for approval.
	e, ok = s.agent.find(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return sign(e.signer, data, flags)
}

// Extension handles session-bind@openssh.com, which ssh sends before using
// the agent. It tells whether the connection is forwarded to another host.
func (s *session) Extension(extensionType string, contents []byte) ([]byte, error) {
	if extensionType != extensionSessionBind {
		return nil, agent.ErrExtensionUnsupported
	}

	var bind struct {
		HostKey      []byte
		SessionID    []byte
		Signature    []byte
		IsForwarding bool
	}
	err := ssh.Unmarshal(contents, &bind)
	if err != nil {
		return nil, ErrInvalidBindData
	}

	if bind.IsForwarding {
		s.mu.Lock()
		s.forwarded = true
		s.mu.Unlock()
	}
	return nil, nil
}

func (s *session) isForwarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forwarded
}

func (s *session) Signers() ([]ssh.Signer, error) {
	return nil, ErrReadOnly
}

func (s *session) Add(key agent.AddedKey) error {
	return ErrReadOnly
}

func (s *session) Remove(key ssh.PublicKey) error {
	return ErrReadOnly
}

func (s *session) RemoveAll() error {
	return ErrReadOnly
}

func (s *session) Lock(passphrase []byte) error {
	return ErrReadOnly
}

func (s *session) Unlock(passphrase []byte) error {
	return ErrReadOnly
}

// parseNamespace returns the namespace of an SSHSIG signing request, as made
// by ssh-keygen -Y sign and git, or an empty string for other data.
func parseNamespace(data []byte) string {
	if !bytes.HasPrefix(data, []byte(sshsigMagic)) {
		return ""
	}

	var blob struct {
		Namespace string
		Reserved  string
		HashAlg   string
		Hash      []byte
	}
	err := ssh.Unmarshal(data[len(sshsigMagic):], &blob)
	if err != nil {
		return ""
	}
	return blob.Namespace
}
