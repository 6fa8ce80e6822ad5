package daemon

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// autoLocker locks unlocked accounts after a fixed timeout.
// A zero timeout disables it.
type autoLocker struct {
	timeout time.Duration
	clock   clock.WithDelayedExecution
	lock    func(account string)

	mu     sync.Mutex
	timers map[string]*lockTimer
}

type lockTimer struct {
	timer    clock.Timer
	deadline time.Time
}

func newAutoLocker(timeout time.Duration, clk clock.WithDelayedExecution, lock func(account string)) *autoLocker {
	return &autoLocker{
		timeout: timeout,
		clock:   clk,
		lock:    lock,
		timers:  make(map[string]*lockTimer),
	}
}

// start (re)schedules the lock of account.
func (a *autoLocker) start(account string) {
	if a.timeout <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked(account)
	t := &lockTimer{deadline: a.clock.Now().Add(a.timeout)}
	t.timer = a.clock.AfterFunc(a.timeout, func() {
		a.mu.Lock()
		current, ok := a.timers[account]
		if ok && current == t {
			delete(a.timers, account)
		}
		a.mu.Unlock()

		if ok && current == t {
			a.lock(account)
		}
	})
	a.timers[account] = t
}

func (a *autoLocker) stop(account string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked(account)
}

func (a *autoLocker) stopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for account := range a.timers {
		a.stopLocked(account)
	}
}

func (a *autoLocker) stopLocked(account string) {
	t, ok := a.timers[account]
	if !ok {
		return
	}
	t.timer.Stop()
	delete(a.timers, account)
}

// remaining returns the time left before account is locked.
func (a *autoLocker) remaining(account string) (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.timers[account]
	if !ok {
		return 0, false
	}
	return t.deadline.Sub(a.clock.Now()), true
}
