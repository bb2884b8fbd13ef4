package waiter

import (
	"testing"
	"time"
)

func TestWaitSleepsRemainingPeriod(t *testing.T) {
	var now time.Duration
	var slept time.Duration
	w := &Waiter{
		period:    5 * time.Millisecond,
		nowFunc:   func() time.Duration { return now },
		sleepFunc: func(d time.Duration) { slept = d; now += d },
	}
	w.Reset()

	now += 2 * time.Millisecond // tick body took 2ms
	w.Wait()

	if slept != 3*time.Millisecond {
		t.Fatalf("slept = %v, want 3ms", slept)
	}
}

func TestWaitDoesNotAccumulateDrift(t *testing.T) {
	var now time.Duration
	calls := 0
	w := &Waiter{
		period:  5 * time.Millisecond,
		nowFunc: func() time.Duration { return now },
		sleepFunc: func(d time.Duration) {
			calls++
			now += d
		},
	}
	w.Reset()

	// Tick overran its period by 10ms.
	now += 15 * time.Millisecond
	w.Wait()

	if calls != 0 {
		t.Fatalf("expected no sleep on overrun, got %d sleep calls", calls)
	}
	if w.target != now+w.period {
		t.Fatalf("target = %v, want now(%v)+period", w.target, now)
	}

	// Next tick should return to normal periodic waiting with no
	// carried-over overrun.
	w.Wait()
	if calls != 1 {
		t.Fatalf("expected one sleep call, got %d", calls)
	}
}

func TestResetPeriod(t *testing.T) {
	var now time.Duration
	w := &Waiter{
		period:    5 * time.Millisecond,
		nowFunc:   func() time.Duration { return now },
		sleepFunc: func(time.Duration) {},
	}
	w.Reset()
	w.ResetPeriod(10 * time.Millisecond)
	if w.Period() != 10*time.Millisecond {
		t.Fatalf("period = %v, want 10ms", w.Period())
	}
	if w.target != now+10*time.Millisecond {
		t.Fatalf("target not rearmed to new period")
	}
}
