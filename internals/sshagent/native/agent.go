// Package native serves the OpenSSH agent protocol on a unix socket. Keys
// are set by the owner of the agent and every use of a key is passed on as a
// sshagent.SignRequest that must be answered before the agent signs.
package native

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secrethub/secrethub-go/internals/errio"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"k8s.io/utils/clock"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/sshagent"
)

// DefaultRequestTimeout is how long a request waits for its response.
const DefaultRequestTimeout = 90 * time.Second

// Errors
var (
	errNative = errio.Namespace("native_agent")

	ErrNotLoaded       = errNative.Code("not_loaded").Error("the SSH agent is not listening")
	ErrAlreadyLoaded   = errNative.Code("already_loaded").Error("the SSH agent is already listening")
	ErrUnknownRequest  = errNative.Code("unknown_request").ErrorPref("no pending request with id %d")
	ErrRequestDenied   = errNative.Code("request_denied").Error("the request was denied")
	ErrKeyNotFound     = errNative.Code("key_not_found").Error("the key is not known to the agent")
	ErrReadOnly        = errNative.Code("read_only").Error("keys are managed by vaultkit and cannot be changed through the agent")
	ErrSocketExists    = errNative.Code("socket_exists").ErrorPref("another process is listening on %s")
	ErrInvalidBindData = errNative.Code("invalid_session_bind").Error("invalid session-bind request")
)

// Focuser brings the user interface of the agent to the attention of the user.
type Focuser interface {
	Focus() error
}

// Option configures an Agent.
type Option func(*Agent)

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		a.timeout = timeout
	}
}

// WithFocuser sets what FocusWindow does.
func WithFocuser(f Focuser) Option {
	return func(a *Agent) {
		a.focuser = f
	}
}

// WithClock sets the clock used for request timeouts.
func WithClock(c clock.Clock) Option {
	return func(a *Agent) {
		a.clock = c
	}
}

type entry struct {
	key    sshagent.Key
	signer ssh.Signer
}

// Agent is an SSH agent listening on a unix socket.
type Agent struct {
	socketPath string
	logger     cli.Logger
	timeout    time.Duration
	focuser    Focuser
	clock      clock.Clock

	requests chan sshagent.SignRequest
	nextID   uint32
	loaded   int32

	mu       sync.Mutex
	keys     []entry
	locked   bool
	pending  map[uint32]chan bool
	listener net.Listener
	conns    map[net.Conn]struct{}
	done     chan struct{}
	closed   bool

	wg sync.WaitGroup
}

// New returns an agent that listens on socketPath once Init is called.
func New(socketPath string, logger cli.Logger, opts ...Option) *Agent {
	a := &Agent{
		socketPath: socketPath,
		logger:     logger,
		timeout:    DefaultRequestTimeout,
		clock:      clock.RealClock{},
		requests:   make(chan sshagent.SignRequest),
		pending:    make(map[uint32]chan bool),
		conns:      make(map[net.Conn]struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SocketPath returns the path of the socket to put in SSH_AUTH_SOCK.
func (a *Agent) SocketPath() string {
	return a.socketPath
}

// Init starts listening on the socket. A stale socket file is replaced.
func (a *Agent) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return ErrAlreadyLoaded
	}

	if _, err := os.Stat(a.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", a.socketPath, time.Second)
		if err == nil {
			conn.Close()
			return ErrSocketExists(a.socketPath)
		}
		a.logger.Debugf("removing stale socket %s", a.socketPath)
		err = os.Remove(a.socketPath)
		if err != nil {
			return errio.Error(err)
		}
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", a.socketPath)
	if err != nil {
		return errio.Error(err)
	}
	err = os.Chmod(a.socketPath, 0600)
	if err != nil {
		listener.Close()
		return errio.Error(err)
	}
	a.listener = listener
	atomic.StoreInt32(&a.loaded, 1)

	a.wg.Add(1)
	go a.acceptLoop(listener)

	a.logger.Debugf("SSH agent listening on %s", a.socketPath)
	return nil
}

func (a *Agent) acceptLoop(listener net.Listener) {
	defer a.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-a.done:
			default:
				a.logger.Errorf("SSH agent stopped accepting connections: %s", err)
			}
			atomic.StoreInt32(&a.loaded, 0)
			return
		}

		if !a.track(conn) {
			conn.Close()
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.untrack(conn)
			a.serveConn(conn, peerProcessName(conn))
		}()
	}
}

func (a *Agent) track(conn net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.conns[conn] = struct{}{}
	return true
}

func (a *Agent) untrack(conn net.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, conn)
	conn.Close()
}

// serveConn handles the agent protocol on one connection until it is closed.
func (a *Agent) serveConn(conn net.Conn, processName string) {
	s := &session{agent: a, processName: processName}
	err := agent.ServeAgent(s, conn)
	if err != nil && !isClosedErr(err) {
		a.logger.Debugf("SSH agent connection ended: %s", err)
	}
}

// IsLoaded returns whether the agent is listening.
func (a *Agent) IsLoaded() bool {
	return atomic.LoadInt32(&a.loaded) == 1
}

// Requests delivers a request for every list while locked and every signature.
// The channel is closed when the agent is closed.
func (a *Agent) Requests() <-chan sshagent.SignRequest {
	return a.requests
}

// SignRequestResponse answers a pending request.
func (a *Agent) SignRequestResponse(ctx context.Context, requestID uint32, approved bool) error {
	a.mu.Lock()
	ch, ok := a.pending[requestID]
	delete(a.pending, requestID)
	a.mu.Unlock()
	if !ok {
		return ErrUnknownRequest(requestID)
	}
	ch <- approved
	return nil
}

// SetKeys replaces the keys served by the agent and unlocks it. Keys that
// cannot be parsed are skipped.
func (a *Agent) SetKeys(ctx context.Context, keys []sshagent.Key) error {
	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		signer, err := ssh.ParsePrivateKey([]byte(key.PrivateKey))
		if err != nil {
			a.logger.Warningf("skipping SSH key %s: %s", key.Name, err)
			continue
		}
		entries = append(entries, entry{key: key, signer: signer})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = entries
	a.locked = false
	return nil
}

// ClearKeys removes all keys from the agent.
func (a *Agent) ClearKeys(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = nil
	return nil
}

// Lock hides the keys until they are set again.
func (a *Agent) Lock(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.locked = true
	return nil
}

// FocusWindow asks the user for attention.
func (a *Agent) FocusWindow(ctx context.Context) error {
	if a.focuser == nil {
		return nil
	}
	return a.focuser.Focus()
}

// Close stops listening, ends all connections and closes the request channel.
// Pending requests are denied.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.done)
	var err error
	if a.listener != nil {
		err = a.listener.Close()
		os.Remove(a.socketPath)
	}
	for conn := range a.conns {
		conn.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	atomic.StoreInt32(&a.loaded, 0)
	close(a.requests)
	return err
}

// request passes req on to the owner of the agent and waits for the answer.
// Unanswered requests are denied after the request timeout.
func (a *Agent) request(req sshagent.SignRequest) bool {
	req.RequestID = atomic.AddUint32(&a.nextID, 1)
	answer := make(chan bool, 1)

	a.mu.Lock()
	a.pending[req.RequestID] = answer
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.pending, req.RequestID)
		a.mu.Unlock()
	}()

	timeout := a.clock.After(a.timeout)
	select {
	case a.requests <- req:
	case <-timeout:
		a.logger.Warningf("SSH agent request %d was not picked up in time", req.RequestID)
		return false
	case <-a.done:
		return false
	}

	select {
	case approved := <-answer:
		return approved
	case <-timeout:
		a.logger.Warningf("SSH agent request %d was not answered in time", req.RequestID)
		return false
	case <-a.done:
		return false
	}
}

func (a *Agent) publicKeys() []*agent.Key {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys := make([]*agent.Key, 0, len(a.keys))
	for _, e := range a.keys {
		pub := e.signer.PublicKey()
		keys = append(keys, &agent.Key{
			Format:  pub.Type(),
			Blob:    pub.Marshal(),
			Comment: e.key.Name,
		})
	}
	return keys
}

func (a *Agent) isLocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}

// find returns the entry of the key with the given public key.
func (a *Agent) find(pub ssh.PublicKey) (entry, bool) {
	blob := string(pub.Marshal())

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.keys {
		if string(e.signer.PublicKey().Marshal()) == blob {
			return e, true
		}
	}
	return entry{}, false
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}

// sign signs data with the signer, honouring the RSA hash flags.
func sign(signer ssh.Signer, data []byte, flags agent.SignatureFlags) (*ssh.Signature, error) {
	var algorithm string
	switch {
	case flags&agent.SignatureFlagRsaSha256 != 0:
		algorithm = ssh.KeyAlgoRSASHA256
	case flags&agent.SignatureFlagRsaSha512 != 0:
		algorithm = ssh.KeyAlgoRSASHA512
	}
	if algorithm == "" || signer.PublicKey().Type() != ssh.KeyAlgoRSA {
		return signer.Sign(rand.Reader, data)
	}

	algorithmSigner, ok := signer.(ssh.AlgorithmSigner)
	if !ok {
		return nil, errNative.Code("unsupported_algorithm").Errorf("the key does not support %s", algorithm)
	}
	return algorithmSigner.SignWithAlgorithm(rand.Reader, data, algorithm)
}
