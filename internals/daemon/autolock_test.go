package daemon

import (
	"sync"
	"testing"
	"time"

	"gotest.tools/assert"
	"gotest.tools/poll"
	clocktesting "k8s.io/utils/clock/testing"
)

type lockRecorder struct {
	mu     sync.Mutex
	locked []string
}

func (r *lockRecorder) lock(account string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, account)
}

func (r *lockRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.locked...)
}

func TestAutoLocker_Restart(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &lockRecorder{}
	a := newAutoLocker(time.Minute, clk, rec.lock)

	a.start("work")
	clk.Step(40 * time.Second)
	a.start("work")
	clk.Step(40 * time.Second)

	assert.Equal(t, len(rec.get()), 0)
	remaining, ok := a.remaining("work")
	assert.Assert(t, ok)
	assert.Equal(t, remaining, 20*time.Second)

	clk.Step(20 * time.Second)

	waitFor(t, func() bool { return len(rec.get()) == 1 })
	assert.DeepEqual(t, rec.get(), []string{"work"})
	_, ok = a.remaining("work")
	assert.Assert(t, !ok)
}

func TestAutoLocker_StopAll(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &lockRecorder{}
	a := newAutoLocker(time.Minute, clk, rec.lock)

	a.start("personal")
	a.start("work")
	a.stopAll()
	clk.Step(time.Hour)

	assert.Equal(t, len(rec.get()), 0)
}

// waitFor polls done until it returns true.
func waitFor(t *testing.T, done func() bool) {
	t.Helper()
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if done() {
			return poll.Success()
		}
		return poll.Continue("condition not met yet")
	}, poll.WithTimeout(5*time.Second))
}
