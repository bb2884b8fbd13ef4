// Package procfs implements the procfs IOGroup: per-core CPU time,
// load average, context switches, and memory signals, generalized
// from the teacher's one-shot /proc/stat and /proc/meminfo readers
// (internal/collector/{cpu,memory}.go) into (name,domain,domainIdx)
// -addressed signals sampled every controller tick. Unlike the
// teacher's two-point sampler, which sleeps for a fixed interval
// inside one Collect call, this group takes its "before" reading from
// the previous tick's ReadBatch and its "after" reading from the
// current one — the controller's own tick period is the sampling
// interval.
package procfs

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// Signal names this group provides.
const (
	SignalCPUUtilizationPct = "CPU_UTILIZATION_PCT" // per core, domain CPU
	SignalLoadAverage1Min   = "LOAD_AVERAGE_1MIN"    // domain Board
	SignalContextSwitchesHz = "CONTEXT_SWITCHES_HZ"  // domain Board
	SignalMemoryUsedPct     = "MEMORY_USED_PCT"       // domain Board
)

var signalDomains = map[string]topo.Domain{
	SignalCPUUtilizationPct: topo.DomainCPU,
	SignalLoadAverage1Min:   topo.DomainBoard,
	SignalContextSwitchesHz: topo.DomainBoard,
	SignalMemoryUsedPct:     topo.DomainBoard,
}

type cpuTimes struct {
	user, nice, system, idle, iowait, irq, softirq, steal uint64
}

func (t cpuTimes) total() uint64 {
	return t.user + t.nice + t.system + t.idle + t.iowait + t.irq + t.softirq + t.steal
}

// Group is the procfs IOGroup. It has no controls.
type Group struct {
	procRoot string

	prevPerCPU  map[int]cpuTimes
	prevCtxt    uint64
	havePrev    bool

	curUtilPct   map[int]float64
	curLoadAvg1  float64
	curCtxHz     float64
	curMemUsed   float64

	pushed []pushedEntry
}

type pushedEntry struct {
	name      string
	domainIdx int
}

// New creates a Group reading from procRoot (normally "/proc").
func New(procRoot string) *Group {
	return &Group{procRoot: procRoot, prevPerCPU: make(map[int]cpuTimes)}
}

func (g *Group) Name() string { return "procfs" }

func (g *Group) SignalNames() []string {
	names := make([]string, 0, len(signalDomains))
	for n := range signalDomains {
		names = append(names, n)
	}
	return names
}

func (g *Group) ControlNames() []string { return nil }

func (g *Group) SignalDomainType(name string) (topo.Domain, error) {
	d, ok := signalDomains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "procfs: unknown signal %q", name)
	}
	return d, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "procfs: no controls")
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := signalDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "procfs: unknown signal %q", name)
	}
	idx := len(g.pushed)
	g.pushed = append(g.pushed, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	return 0, geopmerr.New(geopmerr.NotSupported, "procfs: no controls")
}

// ReadBatch reads /proc/stat, /proc/loadavg and /proc/meminfo once,
// computing per-core utilization as the delta against the previous
// call. The first ReadBatch after construction has no prior sample to
// delta against, so utilization and context-switch rate read as 0 for
// that tick only.
func (g *Group) ReadBatch() error {
	perCPU, ctxt := g.readProcStat()
	loadAvg1 := g.readLoadAvg1()
	memUsedPct := g.readMemUsedPct()

	g.curLoadAvg1 = loadAvg1
	g.curMemUsed = memUsedPct
	g.curUtilPct = make(map[int]float64, len(perCPU))

	if g.havePrev {
		for cpu, now := range perCPU {
			before, ok := g.prevPerCPU[cpu]
			if !ok {
				continue
			}
			totalDelta := float64(now.total() - before.total())
			if totalDelta == 0 {
				g.curUtilPct[cpu] = 0
				continue
			}
			busy := totalDelta - float64(now.idle-before.idle) - float64(now.iowait-before.iowait)
			g.curUtilPct[cpu] = busy / totalDelta * 100
		}
		g.curCtxHz = float64(ctxt - g.prevCtxt)
	} else {
		g.curCtxHz = 0
	}

	g.prevPerCPU = perCPU
	g.prevCtxt = ctxt
	g.havePrev = true
	return nil
}

func (g *Group) Sample(handle int) (float64, error) {
	if handle < 0 || handle >= len(g.pushed) {
		return 0, geopmerr.New(geopmerr.Invalid, "procfs: bad handle %d", handle)
	}
	e := g.pushed[handle]
	switch e.name {
	case SignalCPUUtilizationPct:
		return g.curUtilPct[e.domainIdx], nil
	case SignalLoadAverage1Min:
		return g.curLoadAvg1, nil
	case SignalContextSwitchesHz:
		return g.curCtxHz, nil
	case SignalMemoryUsedPct:
		return g.curMemUsed, nil
	default:
		return 0, geopmerr.New(geopmerr.Invalid, "procfs: pushed unknown signal %q", e.name)
	}
}

func (g *Group) Adjust(handle int, value float64) error {
	return geopmerr.New(geopmerr.NotSupported, "procfs: no controls")
}

func (g *Group) WriteBatch() error { return nil }

func (g *Group) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	switch name {
	case SignalLoadAverage1Min:
		return g.readLoadAvg1(), nil
	case SignalMemoryUsedPct:
		return g.readMemUsedPct(), nil
	default:
		return 0, geopmerr.New(geopmerr.NotSupported, "procfs: %q has no out-of-band single-shot read", name)
	}
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	return geopmerr.New(geopmerr.NotSupported, "procfs: no controls")
}

func (g *Group) AggFunction(name string) string {
	if name == SignalCPUUtilizationPct {
		return "average"
	}
	return "average"
}
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int    { return 1 }

func (g *Group) readProcStat() (map[int]cpuTimes, uint64) {
	f, err := os.Open(filepath.Join(g.procRoot, "stat"))
	if err != nil {
		return nil, 0
	}
	defer f.Close()

	perCPU := make(map[int]cpuTimes)
	var ctxt uint64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "cpu" {
			continue // aggregate line; per-core lines are "cpu0", "cpu1", ...
		}
		if strings.HasPrefix(fields[0], "cpu") && len(fields) >= 9 {
			cpuNum, err := strconv.Atoi(strings.TrimPrefix(fields[0], "cpu"))
			if err == nil {
				perCPU[cpuNum] = parseCPULine(fields)
			}
		} else if fields[0] == "ctxt" {
			ctxt, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	return perCPU, ctxt
}

func parseCPULine(fields []string) cpuTimes {
	parse := func(idx int) uint64 {
		if idx >= len(fields) {
			return 0
		}
		v, _ := strconv.ParseUint(fields[idx], 10, 64)
		return v
	}
	return cpuTimes{
		user: parse(1), nice: parse(2), system: parse(3), idle: parse(4),
		iowait: parse(5), irq: parse(6), softirq: parse(7), steal: parse(8),
	}
}

func (g *Group) readLoadAvg1() float64 {
	data, err := os.ReadFile(filepath.Join(g.procRoot, "loadavg"))
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

func (g *Group) readMemUsedPct() float64 {
	f, err := os.Open(filepath.Join(g.procRoot, "meminfo"))
	if err != nil {
		return 0
	}
	defer f.Close()

	var total, available uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable:":
			available, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	if total == 0 {
		return 0
	}
	return float64(total-available) / float64(total) * 100
}

// sortedCPUNums is a small helper kept for callers that want a
// deterministic core iteration order (e.g. trace column naming).
func sortedCPUNums(m map[int]cpuTimes) []int {
	nums := make([]int, 0, len(m))
	for n := range m {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
