// Package overhead measures geopmd's own resource consumption during
// a controller run, adapted from the teacher's observer-effect
// mitigation idiom (internal/observer/{tracker,overhead}.go):
// geopmd's own tick loop is the thing under measurement here instead
// of spawned BCC tool processes, so there is one self PID plus
// whatever child controller processes a federated deployment spawns.
package overhead

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Summary captures geopmd's own resource consumption during a run, so
// a reader can tell the control loop's cost apart from the platform
// it's managing. cmd/geopmd logs it at exit; it is not written into
// the report.
type Summary struct {
	SelfPID         int
	ChildPIDs       []int
	CPUUserMs       int64
	CPUSystemMs     int64
	MemoryRSSBytes  int64
	DiskReadBytes   int64
	DiskWriteBytes  int64
	ContextSwitches int64
}

// procSnapshot holds raw values read from /proc/[pid]/{stat,io,status}.
type procSnapshot struct {
	utime          uint64 // clock ticks
	stime          uint64
	rss            int64 // pages
	voluntaryCtxSw int64
	nonvolCtxSw    int64
	readBytes      int64
	writeBytes     int64
}

type beforeSnapshot struct {
	self     procSnapshot
	children map[int]procSnapshot
}

// Monitor tracks geopmd's own PID and any child controller PIDs (a
// federated deployment's child-host processes), computing the delta
// between a SnapshotBefore and SnapshotAfter pair.
type Monitor struct {
	mu       sync.RWMutex
	selfPID  int
	children map[int]string // pid -> child host name
	before   *beforeSnapshot
}

// NewMonitor creates a Monitor seeded with the current process PID.
func NewMonitor() *Monitor {
	return &Monitor{
		selfPID:  os.Getpid(),
		children: make(map[int]string),
	}
}

// SelfPID returns geopmd's own process ID.
func (m *Monitor) SelfPID() int { return m.selfPID }

// AddChild registers a child controller process (e.g. a federated
// child host's geopmd instance this node spawned).
func (m *Monitor) AddChild(pid int, host string) {
	m.mu.Lock()
	m.children[pid] = host
	m.mu.Unlock()
}

// RemoveChild unregisters a child controller process.
func (m *Monitor) RemoveChild(pid int) {
	m.mu.Lock()
	delete(m.children, pid)
	m.mu.Unlock()
}

// ChildCount returns the number of currently tracked child PIDs.
func (m *Monitor) ChildCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children)
}

// SnapshotBefore records the current resource usage of geopmd and its
// children. Call this once, at controller start.
func (m *Monitor) SnapshotBefore() {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &beforeSnapshot{
		self:     readProcSnapshot(m.selfPID),
		children: make(map[int]procSnapshot),
	}
	for pid := range m.children {
		snap.children[pid] = readProcSnapshot(pid)
	}
	m.before = snap
}

// SnapshotAfter reads current resource usage and computes the delta
// since SnapshotBefore — geopmd's own overhead for the run.
func (m *Monitor) SnapshotAfter() Summary {
	m.mu.RLock()
	before := m.before
	childPIDs := make([]int, 0, len(m.children))
	for pid := range m.children {
		childPIDs = append(childPIDs, pid)
	}
	m.mu.RUnlock()

	summary := Summary{SelfPID: m.selfPID, ChildPIDs: childPIDs}
	if before == nil {
		return summary
	}

	selfNow := readProcSnapshot(m.selfPID)
	summary.CPUUserMs = ticksToMs(selfNow.utime - before.self.utime)
	summary.CPUSystemMs = ticksToMs(selfNow.stime - before.self.stime)
	summary.MemoryRSSBytes = selfNow.rss * 4096
	summary.ContextSwitches = (selfNow.voluntaryCtxSw - before.self.voluntaryCtxSw) +
		(selfNow.nonvolCtxSw - before.self.nonvolCtxSw)
	summary.DiskReadBytes = selfNow.readBytes - before.self.readBytes
	summary.DiskWriteBytes = selfNow.writeBytes - before.self.writeBytes

	for _, pid := range childPIDs {
		childNow := readProcSnapshot(pid)
		beforeChild, ok := before.children[pid]
		if !ok {
			beforeChild = procSnapshot{} // child started after SnapshotBefore
		}
		summary.CPUUserMs += ticksToMs(childNow.utime - beforeChild.utime)
		summary.CPUSystemMs += ticksToMs(childNow.stime - beforeChild.stime)
		summary.MemoryRSSBytes += childNow.rss * 4096
		summary.ContextSwitches += (childNow.voluntaryCtxSw - beforeChild.voluntaryCtxSw) +
			(childNow.nonvolCtxSw - beforeChild.nonvolCtxSw)
		summary.DiskReadBytes += childNow.readBytes - beforeChild.readBytes
		summary.DiskWriteBytes += childNow.writeBytes - beforeChild.writeBytes
	}

	return summary
}

// ticksToMs converts clock ticks (SC_CLK_TCK, 100 on virtually all
// Linux systems) to milliseconds.
func ticksToMs(ticks uint64) int64 { return int64(ticks) * 10 }

// readProcSnapshot reads /proc/[pid]/{stat,io,status} for pid,
// returning zero values if the process no longer exists.
func readProcSnapshot(pid int) procSnapshot {
	var snap procSnapshot

	statData, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return snap
	}
	snap = parseProcStat(string(statData))

	ioData, err := os.ReadFile(fmt.Sprintf("/proc/%d/io", pid))
	if err != nil {
		return snap
	}
	snap.readBytes, snap.writeBytes = parseProcIO(string(ioData))

	statusData, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return snap
	}
	snap.voluntaryCtxSw, snap.nonvolCtxSw = parseProcStatus(string(statusData))

	return snap
}

func parseProcStat(content string) procSnapshot {
	var snap procSnapshot

	commEnd := strings.LastIndex(content, ")")
	if commEnd < 0 || commEnd+2 >= len(content) {
		return snap
	}

	fields := strings.Fields(content[commEnd+2:])
	// fields[0]=state, fields[11]=utime, fields[12]=stime, fields[21]=rss
	if len(fields) > 12 {
		snap.utime, _ = strconv.ParseUint(fields[11], 10, 64)
		snap.stime, _ = strconv.ParseUint(fields[12], 10, 64)
	}
	if len(fields) > 21 {
		snap.rss, _ = strconv.ParseInt(fields[21], 10, 64)
	}
	return snap
}

func parseProcIO(content string) (readBytes, writeBytes int64) {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.SplitN(line, ": ", 2)
		if len(fields) != 2 {
			continue
		}
		val, _ := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		switch fields[0] {
		case "read_bytes":
			readBytes = val
		case "write_bytes":
			writeBytes = val
		}
	}
	return
}

func parseProcStatus(content string) (voluntary, nonvoluntary int64) {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.SplitN(line, ":\t", 2)
		if len(fields) != 2 {
			continue
		}
		val, _ := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		switch fields[0] {
		case "voluntary_ctxt_switches":
			voluntary = val
		case "nonvoluntary_ctxt_switches":
			nonvoluntary = val
		}
	}
	return
}
