package clockfake

import (
	"sort"
	"sync"
	"time"

	"github.com/servio/clientcore/internal/clock"
)

var _ clock.Clock = (*FakeClock)(nil)

// FakeClock is a controllable clock.Clock. Time only moves when Advance is
// called; timers due at or before the new time fire in schedule order, on
// the caller's goroutine.
type FakeClock struct {
	lock   sync.Mutex
	now    time.Time
	timers []*fakeTimer
	seq    int
}

type fakeTimer struct {
	clk     *FakeClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func New(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, fn func()) clock.Timer {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.seq++
	t := &fakeTimer{clk: c, at: c.now.Add(d), seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every due timer. Callbacks
// run outside the internal lock so they may schedule further timers; a
// callback scheduled within the advanced window fires in the same call.
func (c *FakeClock) Advance(d time.Duration) {
	c.lock.Lock()
	target := c.now.Add(d)
	c.lock.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	c.lock.Lock()
	c.now = target
	c.lock.Unlock()
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (c *FakeClock) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (c *FakeClock) nextDue(target time.Time) *fakeTimer {
	c.lock.Lock()
	defer c.lock.Unlock()

	due := make([]*fakeTimer, 0)
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].at.Equal(due[j].at) {
			return due[i].at.Before(due[j].at)
		}
		return due[i].seq < due[j].seq
	})

	t := due[0]
	t.fired = true
	if t.at.After(c.now) {
		c.now = t.at
	}
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clk.lock.Lock()
	defer t.clk.lock.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
