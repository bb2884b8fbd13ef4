// Package clock provides the single monotonic time source used by
// every record event and every controller wait. Wall-clock time is
// deliberately excluded here: it is used exactly once, when the
// report writer formats a human-readable timestamp header.
package clock

import "time"

var processStart = time.Now()

// Now returns the monotonic time elapsed since process start. All
// record events (internal/profile) and all waiter deadlines
// (internal/waiter) are expressed in this unit so that the two never
// mix monotonic and wall-clock readings, per the spec's resolved open
// question on clock sources.
func Now() time.Duration {
	return time.Since(processStart)
}

// WallClock returns the current real-time timestamp, reserved for
// human-readable report headers only.
func WallClock() time.Time {
	return time.Now()
}
