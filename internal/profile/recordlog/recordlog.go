// Package recordlog implements the single-producer/single-consumer
// record ring the application side writes into and the controller
// side drains: a fixed-capacity ring of enter/exit/epoch records, plus
// a companion short-region summary table that absorbs overflow so a
// burst of very short regions never blocks the application.
//
// The ring's storage is always a golang.org/x/sys/unix.Mmap mapping,
// not a plain Go slice: New allocates an anonymous MAP_SHARED mapping
// (so the bytes are exactly what a real cross-process channel would
// use, even though in-process callers never need to share the fd),
// and NewShared maps a named file so a separate application process
// and the controller process can attach to the identical ring bytes.
// The mutex that guards Enter/Exit/Epoch/Drain still lives in one
// process's memory: it arbitrates the overflow merge decision (a
// compound read-modify-write over the ring, openEnter and summaries
// together), which is a correctness requirement independent of where
// the ring bytes themselves live. A genuine multi-writer-process
// deployment would pair this ring with an OS-level named semaphore
// guarding the same mapping from the application side; that transport
// is out of scope here (see DESIGN.md).
package recordlog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/geopmd/core/internal/profile"
)

// Record is the wire-layout record: the same fields as profile.Record,
// kept as a flat struct so the mmap'd ring can reinterpret the same
// bytes without a conversion layer.
type Record struct {
	Event profile.EventType
	Hash  profile.RegionHash
	Time  float64
}

// ShortRegionSummary accumulates regions that entered and exited
// between two controller drains without a full Record pair being
// available in the ring (the ring overflowed). Exactly one of "two
// full records were written" or "a short-region summary was updated"
// holds for a given enter/exit pair — never both, never neither.
type ShortRegionSummary struct {
	Hash         profile.RegionHash
	NumComplete  uint64
	TotalRuntime float64
}

// Log is the SPSC ring plus its overflow summary table. The zero
// value is not usable; use New or NewShared.
type Log struct {
	mu       sync.Mutex
	capacity int
	ring     []Record
	mapping  []byte // the mmap'd bytes ring and header are reinterpreted over
	file     *os.File
	// headPtr/countPtr alias the first 16 bytes of mapping when this
	// Log has one (nil for the process-memory fallback): the ring's
	// read/write cursors live in the mapping itself so a second
	// process opening the same path with NewShared observes the
	// producer's state, not just its record bytes.
	headPtr  *int64
	countPtr *int64
	head     int // next write position
	count    int // number of valid unread entries

	overflowed bool
	summaries  map[profile.RegionHash]*ShortRegionSummary

	openEnter map[profile.RegionHash]float64 // hash -> enter time, for merge-on-exit
}

// recordSize is the byte footprint of one Record in the mmap'd ring.
var recordSize = int(unsafe.Sizeof(Record{}))

// headerSize reserves two int64 cursors (head, count) at the front of
// the mapping, ahead of the ring records themselves.
const headerSize = 16

// mmapRegion maps headerSize+capacity*recordSize bytes at the given fd
// (-1 for an anonymous mapping) and reinterprets it as a header cursor
// pair plus a []Record of length capacity.
func mmapRegion(fd int, capacity int, flags int) (mapping []byte, ring []Record, headPtr, countPtr *int64, err error) {
	size := headerSize + capacity*recordSize
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	headPtr = (*int64)(unsafe.Pointer(&data[0]))
	countPtr = (*int64)(unsafe.Pointer(&data[8]))
	ring = unsafe.Slice((*Record)(unsafe.Pointer(&data[headerSize])), capacity)
	return data, ring, headPtr, countPtr, nil
}

// New creates a Log whose ring holds capacity records, backed by an
// anonymous shared mapping. Capacity must be at least 2 — a ring of 1
// can never hold a complete enter/exit pair without immediately
// overflowing.
func New(capacity int) *Log {
	if capacity < 2 {
		capacity = 2
	}
	data, ring, headPtr, countPtr, err := mmapRegion(-1, capacity, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		// An anonymous mapping can only fail under real resource
		// exhaustion; fall back to process memory so a degraded host
		// still gets a working (if not literally shared) ring rather
		// than a construction failure from what is, logically, a
		// private buffer anyway.
		ring = make([]Record, capacity)
	}
	return &Log{
		capacity:  capacity,
		ring:      ring,
		mapping:   data,
		headPtr:   headPtr,
		countPtr:  countPtr,
		summaries: make(map[profile.RegionHash]*ShortRegionSummary),
		openEnter: make(map[profile.RegionHash]float64),
	}
}

// NewShared creates (or reopens) a named shared-memory-backed Log at
// path, sized for capacity records. The process that launches the
// instrumented application and the controller process both map path
// and observe the identical ring bytes and cursors — the cross-process
// channel the application side's profile.Context writes into and the
// controller's per-tick Drain reads from. Reopening an existing path
// inherits whatever head/count the first opener left behind, rather
// than starting from an empty ring.
func NewShared(path string, capacity int) (*Log, error) {
	if capacity < 2 {
		capacity = 2
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("recordlog: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(headerSize + capacity*recordSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("recordlog: truncate %s: %w", path, err)
	}
	data, ring, headPtr, countPtr, err := mmapRegion(int(f.Fd()), capacity, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("recordlog: mmap %s: %w", path, err)
	}
	return &Log{
		capacity:  capacity,
		ring:      ring,
		mapping:   data,
		file:      f,
		headPtr:   headPtr,
		countPtr:  countPtr,
		head:      int(atomic.LoadInt64(headPtr)),
		count:     int(atomic.LoadInt64(countPtr)),
		summaries: make(map[profile.RegionHash]*ShortRegionSummary),
		openEnter: make(map[profile.RegionHash]float64),
	}, nil
}

// syncCursors publishes the in-memory head/count to the mapped header
// so another process mapping the same file observes the new state.
// No-op for a Log without a mapping (the process-memory fallback).
func (l *Log) syncCursors() {
	if l.headPtr == nil {
		return
	}
	atomic.StoreInt64(l.headPtr, int64(l.head))
	atomic.StoreInt64(l.countPtr, int64(l.count))
}

// Close unmaps the ring's backing memory and, for a NewShared log,
// closes the backing file (without removing it — the controller owns
// the named file's lifecycle, typically deleting it once the
// instrumented application has exited).
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mapping == nil {
		return nil
	}
	if err := unix.Munmap(l.mapping); err != nil {
		return err
	}
	l.mapping = nil
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Enter records the open time for hash but defers the decision of
// whether it becomes a real ring record until the matching Exit,
// so an enter/exit pair is always resolved atomically as either two
// full records or one short-region summary update — never split
// between the two, and never silently dropped.
func (l *Log) Enter(hash profile.RegionHash, t float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openEnter[hash] = t
}

// Exit resolves the matching Enter: if the ring has room for both
// records, pushes the enter/exit pair in order; otherwise merges the
// pair's duration into the short-region summary for hash.
func (l *Log) Exit(hash profile.RegionHash, t float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	enterT, ok := l.openEnter[hash]
	if !ok {
		// Exit with no matching Enter (e.g. the application mis-paired
		// calls): record it alone if there's room, otherwise drop it.
		if l.count < l.capacity-1 {
			l.push(Record{Event: profile.EventExit, Hash: hash, Time: t})
		} else {
			l.overflowed = true
		}
		return
	}
	delete(l.openEnter, hash)

	// capacity-1 is the ring's usable limit (the classic SPSC
	// full/empty disambiguation slot); a pair needs room for both
	// records within that limit.
	if l.count+2 <= l.capacity-1 {
		l.push(Record{Event: profile.EventEnter, Hash: hash, Time: enterT})
		l.push(Record{Event: profile.EventExit, Hash: hash, Time: t})
		return
	}

	l.overflowed = true
	s := l.summaries[hash]
	if s == nil {
		s = &ShortRegionSummary{Hash: hash}
		l.summaries[hash] = s
	}
	s.NumComplete++
	s.TotalRuntime += t - enterT
}

// Epoch appends an epoch boundary record, always — epoch markers are
// never subject to overflow merging since agents depend on observing
// every epoch boundary.
func (l *Log) Epoch(hash profile.RegionHash, t float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.push(Record{Event: profile.EventEpoch, Hash: hash, Time: t})
}

func (l *Log) push(r Record) {
	idx := (l.head) % l.capacity
	l.ring[idx] = r
	l.head = (l.head + 1) % l.capacity
	if l.count < l.capacity {
		l.count++
	}
	l.syncCursors()
}

// Drain returns every unread record in FIFO order, clearing the ring,
// and the short-region summaries accumulated since the last drain
// (also cleared). This is the controller's per-tick read of the
// application's record stream.
func (l *Log) Drain() ([]Record, []ShortRegionSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, l.count)
	start := (l.head - l.count + l.capacity) % l.capacity
	for i := 0; i < l.count; i++ {
		out[i] = l.ring[(start+i)%l.capacity]
	}
	l.head = 0
	l.count = 0
	l.syncCursors()

	var summaries []ShortRegionSummary
	for _, s := range l.summaries {
		summaries = append(summaries, *s)
	}
	l.summaries = make(map[profile.RegionHash]*ShortRegionSummary)

	return out, summaries
}

// Overflowed reports whether the ring has ever been full since
// construction (sticky; never reset by Drain). Used by overhead
// accounting to flag that the configured capacity is undersized for
// the observed region churn rate.
func (l *Log) Overflowed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overflowed
}

// Capacity returns the ring's configured capacity.
func (l *Log) Capacity() int { return l.capacity }
