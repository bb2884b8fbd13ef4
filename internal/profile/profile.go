// Package profile implements the application-side profiling API: a
// region identifier scheme, a per-thread Context tracking nested
// region entry/exit and epoch boundaries, and the progress fraction
// applications report within a region.
package profile

import (
	"hash/crc32"
	"math"
)

// RegionHash is the 64-bit region identifier applications and the
// controller exchange: a 32-bit caller-supplied hint in the high
// half and a 32-bit CRC-32 hash of the region name in the low half.
// The zero value is the sentinel meaning "unmarked" / "no region";
// NewRegionHash never produces a hash whose low 32 bits are zero.
type RegionHash uint64

// Hint occupies the high 32 bits of a RegionHash, classifying the
// kind of work the application expects the region to do.
type Hint uint32

const (
	HintUnknown Hint = iota
	HintCompute
	HintMemory
	HintNetwork
	HintIO
	HintSerial
)

// Unmarked is the sentinel RegionHash meaning no region is active.
const Unmarked RegionHash = 0

// NewRegionHash computes the region identifier for a region name and
// hint, matching the source implementation's split of a CRC-32 name
// hash (low 32 bits) and caller hint (high 32 bits).
func NewRegionHash(name string, hint Hint) RegionHash {
	h := crc32.ChecksumIEEE([]byte(name))
	if h == 0 {
		// Never collide with the unmarked sentinel: perturb a true
		// zero-hash name (the empty string, or a name CRC-32 happens
		// to hash to zero) to the next value.
		h = 1
	}
	return RegionHash(uint64(hint)<<32 | uint64(h))
}

// Valid reports whether h is a real (non-sentinel) region identifier.
func (h RegionHash) Valid() bool { return h != Unmarked }

// HintOf extracts the caller hint from a region hash.
func (h RegionHash) HintOf() Hint { return Hint(uint64(h) >> 32) }

// frame is one entry on a Context's region call stack.
type frame struct {
	hash      RegionHash
	enterTime float64 // monotonic seconds, from Context.nowFunc
	progress  float64
}

// Context tracks one thread's (or, in the single-threaded core, one
// rank's) nested region stack, epoch count, and synthesized record
// stream consumed by the controller's per-tick sampling.
type Context struct {
	nowFunc func() float64 // monotonic seconds; overridable for tests

	stack []frame

	epochCount    float64
	lastEpochTime float64

	records []Record
}

// Record is one entry the controller-facing record log would carry:
// an event (enter, exit, or epoch) with its monotonic timestamp and
// the region hash in effect.
type Record struct {
	Event EventType
	Hash  RegionHash
	Time  float64
}

// EventType classifies a Record.
type EventType int

const (
	EventEnter EventType = iota
	EventExit
	EventEpoch
)

// NewContext creates a Context using nowFunc as its monotonic clock
// (tests inject a deterministic fake; production wiring passes
// internal/clock.Now as seconds).
func NewContext(nowFunc func() float64) *Context {
	return &Context{nowFunc: nowFunc}
}

// Enter pushes a region onto the stack, recording its entry time.
// Nested regions are allowed; the innermost region is what
// SamplePlatform and the record log observe as "current".
func (c *Context) Enter(hash RegionHash) {
	now := c.nowFunc()
	c.stack = append(c.stack, frame{hash: hash, enterTime: now})
	c.records = append(c.records, Record{Event: EventEnter, Hash: hash, Time: now})
}

// Exit pops the innermost region. Calling Exit with an empty stack is
// a no-op (defensive against a malformed application that exits more
// times than it entered).
func (c *Context) Exit() {
	if len(c.stack) == 0 {
		return
	}
	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.records = append(c.records, Record{Event: EventExit, Hash: top.hash, Time: c.nowFunc()})
}

// Current returns the innermost active region hash, or Unmarked if no
// region is active.
func (c *Context) Current() RegionHash {
	if len(c.stack) == 0 {
		return Unmarked
	}
	return c.stack[len(c.stack)-1].hash
}

// Depth returns the current nesting depth.
func (c *Context) Depth() int { return len(c.stack) }

// Progress reports fractional completion, in [0,1], of the innermost
// active region. Calling it outside any region is a no-op.
func (c *Context) Progress(fraction float64) {
	if len(c.stack) == 0 {
		return
	}
	c.stack[len(c.stack)-1].progress = fraction
}

// CurrentProgress returns the innermost region's last reported
// progress fraction, or NaN if no region is active.
func (c *Context) CurrentProgress() float64 {
	if len(c.stack) == 0 {
		return math.NaN()
	}
	return c.stack[len(c.stack)-1].progress
}

// Epoch marks an epoch boundary: the application's definition of one
// iteration of its outermost loop, used by agents like the frequency
// balancer to decide when to rebalance.
func (c *Context) Epoch() {
	now := c.nowFunc()
	c.epochCount++
	c.lastEpochTime = now
	c.records = append(c.records, Record{Event: EventEpoch, Hash: c.Current(), Time: now})
}

// EpochCount returns the number of epochs marked so far.
func (c *Context) EpochCount() float64 { return c.epochCount }

// LastEpochTime returns the monotonic time of the most recent Epoch call.
func (c *Context) LastEpochTime() float64 { return c.lastEpochTime }

// DrainRecords returns and clears the accumulated record stream,
// mirroring the record log's consume-on-read semantics.
func (c *Context) DrainRecords() []Record {
	out := c.records
	c.records = nil
	return out
}
