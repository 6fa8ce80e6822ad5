package sshagent

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"gotest.tools/assert"
	"gotest.tools/poll"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/vault"
)

const testTimeout = 5 * time.Second

type response struct {
	id       uint32
	approved bool
}

type fakeAgent struct {
	requests chan SignRequest

	responses chan response
	setKeys   chan []Key
	cleared   chan struct{}
	locked    chan struct{}

	mu        sync.Mutex
	answered  map[uint32]int
	focused   int
	initErr   error
	notLoaded bool
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		requests:  make(chan SignRequest),
		responses: make(chan response, 100),
		setKeys:   make(chan []Key, 100),
		cleared:   make(chan struct{}, 100),
		locked:    make(chan struct{}, 100),
		answered:  make(map[uint32]int),
	}
}

func (a *fakeAgent) Init(ctx context.Context) error { return a.initErr }

func (a *fakeAgent) IsLoaded() bool { return !a.notLoaded }

func (a *fakeAgent) Requests() <-chan SignRequest { return a.requests }

func (a *fakeAgent) SignRequestResponse(ctx context.Context, requestID uint32, approved bool) error {
	a.mu.Lock()
	a.answered[requestID]++
	a.mu.Unlock()
	a.responses <- response{id: requestID, approved: approved}
	return nil
}

func (a *fakeAgent) SetKeys(ctx context.Context, keys []Key) error {
	a.setKeys <- keys
	return nil
}

func (a *fakeAgent) ClearKeys(ctx context.Context) error {
	a.cleared <- struct{}{}
	return nil
}

func (a *fakeAgent) Lock(ctx context.Context) error {
	a.locked <- struct{}{}
	return nil
}

func (a *fakeAgent) FocusWindow(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focused++
	return nil
}

func (a *fakeAgent) timesAnswered(id uint32) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.answered[id]
}

func (a *fakeAgent) expectResponse(t *testing.T) response {
	t.Helper()
	select {
	case r := <-a.responses:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a response")
		return response{}
	}
}

func (a *fakeAgent) expectNoResponse(t *testing.T) {
	t.Helper()
	select {
	case r := <-a.responses:
		t.Fatalf("unexpected response %+v", r)
	default:
	}
}

func expectSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

type fakeSubscription struct {
	updates chan vault.AccountStatus

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *fakeSubscription) Updates() <-chan vault.AccountStatus { return s.updates }

func (s *fakeSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSubscription) Close() { s.finish(nil) }

func (s *fakeSubscription) push(status vault.AccountStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- status
}

func (s *fakeSubscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.updates)
}

type fakeAccounts struct {
	mu        sync.Mutex
	status    vault.AccountStatus
	subs      []*fakeSubscription
	added     *sync.Cond
	statusErr error
}

func newFakeAccounts(status vault.AccountStatus) *fakeAccounts {
	a := &fakeAccounts{status: status}
	a.added = sync.NewCond(&a.mu)
	return a
}

func (a *fakeAccounts) ActiveStatus(ctx context.Context) (vault.AccountStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.statusErr
}

func (a *fakeAccounts) Subscribe() vault.StatusSubscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	sub := &fakeSubscription{updates: make(chan vault.AccountStatus, 1)}
	sub.push(a.status)
	a.subs = append(a.subs, sub)
	a.added.Broadcast()
	return sub
}

func (a *fakeAccounts) set(status vault.AccountStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	for _, sub := range a.subs {
		sub.push(status)
	}
}

// end finishes all current subscriptions with err.
func (a *fakeAccounts) end(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs {
		sub.finish(err)
	}
}

// waitForSubscribers blocks until n subscriptions were made in total.
func (a *fakeAccounts) waitForSubscribers(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.subs) < n {
		a.added.Wait()
	}
}

type fakeVault struct {
	mu      sync.Mutex
	ciphers map[string][]vault.Cipher
	err     error
	fetches int
}

func (v *fakeVault) GetAllDecrypted(ctx context.Context, userID string) ([]vault.Cipher, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fetches++
	if v.err != nil {
		return nil, v.err
	}
	return v.ciphers[userID], nil
}

func (v *fakeVault) fetchCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fetches
}

type fakeSettings struct {
	mu          sync.Mutex
	enabled     bool
	behavior    PromptBehavior
	err         error
	behaviorErr error
}

func (s *fakeSettings) SSHAgentEnabled(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, s.err
}

func (s *fakeSettings) PromptBehavior(ctx context.Context) (PromptBehavior, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behavior, s.behaviorErr
}

func (s *fakeSettings) setEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

type notice struct {
	level string
	title string
}

type fakeNotifier struct {
	notices chan notice
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notices: make(chan notice, 100)}
}

func (n *fakeNotifier) Info(title, message string) {
	n.notices <- notice{level: "info", title: title}
}

func (n *fakeNotifier) Error(title, message string) {
	n.notices <- notice{level: "error", title: title}
}

func (n *fakeNotifier) expect(t *testing.T, expected notice) {
	t.Helper()
	select {
	case actual := <-n.notices:
		assert.Equal(t, actual, expected)
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s notice", expected.level)
	}
}

type fakeApprover struct {
	mu       sync.Mutex
	approve  bool
	err      error
	requests []ApprovalRequest
}

func (a *fakeApprover) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return a.approve, a.err
}

func (a *fakeApprover) asked() []ApprovalRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ApprovalRequest{}, a.requests...)
}

// keyTranslator returns translation keys unchanged.
type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string { return key }

var errTest = errors.New("test error")

type testEnv struct {
	agent    *fakeAgent
	accounts *fakeAccounts
	vault    *fakeVault
	settings *fakeSettings
	notifier *fakeNotifier
	approver *fakeApprover
	clock    *clocktesting.FakeClock
	service  *Service
}

func newTestEnv(status vault.AccountStatus) *testEnv {
	env := &testEnv{
		agent:    newFakeAgent(),
		accounts: newFakeAccounts(status),
		vault:    &fakeVault{ciphers: map[string][]vault.Cipher{}},
		settings: &fakeSettings{enabled: true, behavior: PromptNever},
		notifier: newFakeNotifier(),
		approver: &fakeApprover{},
		clock:    clocktesting.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
	}
	env.service = NewService(Config{
		Agent:      env.agent,
		Accounts:   env.accounts,
		Vault:      env.vault,
		Settings:   env.settings,
		Notifier:   env.notifier,
		Approver:   env.approver,
		Translator: keyTranslator{},
		Logger:     cli.NewLoggerTo(io.Discard),
		Clock:      env.clock,
	})
	return env
}

// handle runs the flow of req in the background.
func (env *testEnv) handle(wg *sync.WaitGroup, req SignRequest) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		env.service.pipeline.handle(context.Background(), req)
	}()
}

func sshKeyCipher(id, name string) vault.Cipher {
	return vault.Cipher{
		ID:   id,
		Type: vault.CipherTypeSSHKey,
		Name: name,
		SSHKey: &vault.SSHKey{
			PrivateKey: "private-" + id,
		},
	}
}

func timeAfter() <-chan time.Time {
	return time.After(testTimeout)
}

// waitForTimer blocks until something is waiting on clk.
func waitForTimer(t *testing.T, clk *clocktesting.FakeClock) {
	t.Helper()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if clk.HasWaiters() {
			return poll.Success()
		}
		return poll.Continue("no timer is waiting")
	}, poll.WithTimeout(testTimeout))
}
