// Package waiter implements the controller's only intentional sleep:
// a periodic, absolute-time wait that never accumulates drift.
package waiter

import (
	"time"

	"github.com/geopmd/core/internal/clock"
)

// Waiter blocks the controller loop until the next period boundary.
// It is the only component that owns wall time inside the core.
type Waiter struct {
	period    time.Duration
	target    time.Duration
	sleepFunc func(time.Duration)
	nowFunc   func() time.Duration
}

// New creates a Waiter with the given period (must be > 0).
func New(period time.Duration) *Waiter {
	w := &Waiter{
		period:    period,
		sleepFunc: time.Sleep,
		nowFunc:   clock.Now,
	}
	w.Reset()
	return w
}

// Reset rearms the waiter for the next call to Wait without changing
// the period.
func (w *Waiter) Reset() {
	w.target = w.nowFunc() + w.period
}

// ResetPeriod rearms the waiter and reconfigures its period.
func (w *Waiter) ResetPeriod(period time.Duration) {
	w.period = period
	w.Reset()
}

// Period returns the waiter's configured period.
func (w *Waiter) Period() time.Duration {
	return w.period
}

// Wait blocks until the target absolute time, then advances the
// target by exactly one period. If the target has already passed —
// the previous tick overran its period — Wait returns immediately and
// resets the target to now + period instead of letting the overrun
// accumulate across ticks.
func (w *Waiter) Wait() {
	now := w.nowFunc()
	if now < w.target {
		w.sleepFunc(w.target - now)
		w.target += w.period
		return
	}
	// Overran the period: drop the missed deadline rather than
	// bursting to catch up.
	w.target = w.nowFunc() + w.period
}
