// Package clock abstracts time and timer scheduling so that timer-driven
// components can be tested without real timers.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled before it fires.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// timer from firing.
	Stop() bool
}

// Clock provides the current time and one-shot timer scheduling.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run after d. Recurring schedules are built
	// by re-arming from inside fn, which also guarantees that ticks never
	// overlap.
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
