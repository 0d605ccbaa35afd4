// Package timer provides a one-shot, re-armable countdown polled by the main loop.
//
// A Timer never fires on its own: the owner polls it once per tick. It is not
// safe for concurrent use and is meant to be owned by a single goroutine.
package timer

import "time"

// Timer is a one-shot countdown. Re-arming replaces the previous deadline.
type Timer struct {
	// name identifies the timer in logs.
	name string
	// now returns the current time when the timer is armed.
	now func() time.Time
	// armed is true between Arm and either Cancel or the firing Poll.
	armed bool
	// deadline is the moment the timer fires.
	deadline time.Time
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock overrides the clock used by Arm.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates an unarmed timer.
func New(name string, opts ...Option) *Timer {
	t := &Timer{
		name: name,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Arm sets the deadline to now+d, replacing any prior deadline.
func (t *Timer) Arm(d time.Duration) {
	t.armed = true
	t.deadline = t.now().Add(d)
}

// Cancel disarms the timer. Canceling an unarmed timer is a no-op.
func (t *Timer) Cancel() {
	t.armed = false
}

// Poll reports true exactly once per arm cycle, on the first call with now at
// or past the deadline, and disarms the timer when it does.
func (t *Timer) Poll(now time.Time) bool {
	if !t.armed || now.Before(t.deadline) {
		return false
	}

	t.armed = false

	return true
}

// Armed reports whether the timer is waiting to fire.
func (t *Timer) Armed() bool {
	return t.armed
}

// Deadline returns the last armed deadline.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Remaining returns the time left until the deadline, or zero when unarmed or overdue.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if !t.armed {
		return 0
	}

	return max(t.deadline.Sub(now), 0)
}
