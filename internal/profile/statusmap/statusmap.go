// Package statusmap implements the application status map: a
// lock-free, per-domain-index snapshot of "what is this CPU doing
// right now" that the controller can read every tick without paying
// for a record log drain. Where the record log (internal/profile/recordlog)
// is an append-only history an agent replays, the status map is a
// single current value per index, overwritten in place — the same
// non-blocking latest-value contract internal/tree uses for policy and
// sample links, applied here to the application-to-controller
// direction instead of node-to-node.
package statusmap

import (
	"sync/atomic"

	"github.com/geopmd/core/internal/profile"
)

// Status is one domain index's current profiling state.
type Status struct {
	Hash      profile.RegionHash
	Hint      profile.Hint
	Progress  float64
	Heartbeat uint64
}

// Map is a fixed-size table of Status entries, one per domain index
// (typically one per CPU). The zero value is not usable; use New.
type Map struct {
	entries []atomic.Value // holds Status
}

// New creates a Map with numEntries slots, each initialized to the
// unmarked/idle status.
func New(numEntries int) *Map {
	m := &Map{entries: make([]atomic.Value, numEntries)}
	for i := range m.entries {
		m.entries[i].Store(Status{Hash: profile.Unmarked})
	}
	return m
}

// Update overwrites the status at idx and bumps its heartbeat. Safe
// to call concurrently with Read from any number of goroutines; never
// blocks a writer on a reader or vice versa.
func (m *Map) Update(idx int, hash profile.RegionHash, hint profile.Hint, progress float64) {
	prev := m.entries[idx].Load().(Status)
	m.entries[idx].Store(Status{
		Hash:      hash,
		Hint:      hint,
		Progress:  progress,
		Heartbeat: prev.Heartbeat + 1,
	})
}

// Read returns the most recently written status at idx.
func (m *Map) Read(idx int) Status {
	return m.entries[idx].Load().(Status)
}

// NumEntries returns the number of domain-index slots the map covers.
func (m *Map) NumEntries() int { return len(m.entries) }

// Stalled reports whether idx's heartbeat has not advanced since
// lastHeartbeat was observed — the controller's signal that an
// application thread has stopped calling into its Context (exited,
// crashed, or deadlocked) and the agent should stop expecting fresh
// region transitions from that index.
func (m *Map) Stalled(idx int, lastHeartbeat uint64) bool {
	return m.Read(idx).Heartbeat == lastHeartbeat
}
