package vault

import (
	"sync"
)

// AuthStatus is the authentication state of an account.
type AuthStatus int

// The possible authentication states of an account.
const (
	LoggedOut AuthStatus = iota
	Locked
	Unlocked
)

func (s AuthStatus) String() string {
	switch s {
	case LoggedOut:
		return "logged out"
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}

// AccountStatus is the active account together with its authentication state.
// An empty UserID means no account is active.
type AccountStatus struct {
	UserID string
	Status AuthStatus
}

// StatusSubscription is a stream of AccountStatus updates. The first value is
// the state at the moment of subscribing. Consumers that fall behind only see
// the latest state.
//
// Updates is closed when the stream ends. Err then reports why: nil means the
// stream completed normally.
type StatusSubscription interface {
	Updates() <-chan AccountStatus
	Err() error
	Close()
}

type subscription struct {
	updates chan AccountStatus
	unsub   func(*subscription)

	mu     sync.Mutex
	closed bool
	err    error
}

func newSubscription(unsub func(*subscription)) *subscription {
	return &subscription{
		updates: make(chan AccountStatus, 1),
		unsub:   unsub,
	}
}

func (s *subscription) Updates() <-chan AccountStatus {
	return s.updates
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription without an error.
func (s *subscription) Close() {
	if s.unsub != nil {
		s.unsub(s)
	}
	s.finish(nil)
}

// push replaces any unread value with status.
func (s *subscription) push(status AccountStatus) {
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

func (s *subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.updates)
}
