// Package monitor implements the pass-through Agent: it makes no
// platform adjustments and simply samples and reports every pushed
// signal, verbatim. It is the agent used by end-to-end scenario 1
// (three-tick constant-signal report) and is the reference
// implementation new agents are modeled after.
package monitor

import (
	"fmt"
	"time"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/platformio"
	"github.com/geopmd/core/internal/report"
	"github.com/geopmd/core/internal/topo"
	"github.com/geopmd/core/internal/waiter"
)

func init() {
	agent.Register("monitor", func() agent.Agent { return New() })
}

// SignalSpec names a signal the monitor pushes and reports at
// construction time.
type SignalSpec struct {
	Name      string
	Domain    topo.Domain
	DomainIdx int
}

// Monitor is the pass-through Agent.
type Monitor struct {
	platformIO *platformio.PlatformIO
	signals    []SignalSpec
	handles    []int
	level      int
	isRoot     bool
	fanOut     int
	lastSample []float64
	w          *waiter.Waiter
	stats      map[string]*report.MomentAccumulator
}

// New creates an unconfigured Monitor; call Configure before Init to
// supply the PlatformIO and the signals to push.
func New() *Monitor {
	return &Monitor{stats: make(map[string]*report.MomentAccumulator)}
}

// Configure supplies the collaborators the monitor needs before Init
// is called by the controller. This mirrors the leaf agent's
// responsibility (per the Agent contract) to push its own signals
// during Init; Configure simply separates "what to push" from "how to
// push it" so the same Monitor type can be reused in tests with a
// stub PlatformIO.
func (m *Monitor) Configure(pio *platformio.PlatformIO, signals []SignalSpec) {
	m.platformIO = pio
	m.signals = signals
}

func (m *Monitor) Init(level int, fanOut int, isRoot bool) error {
	m.level = level
	m.fanOut = fanOut
	m.isRoot = isRoot
	m.w = waiter.New(time.Second)
	if level != 0 || m.platformIO == nil {
		return nil
	}
	m.handles = make([]int, len(m.signals))
	for i, s := range m.signals {
		h, err := m.platformIO.PushSignal(s.Name, s.Domain, s.DomainIdx)
		if err != nil {
			return err
		}
		m.handles[i] = h
		m.stats[s.Name] = report.NewMomentAccumulator()
	}
	return nil
}

// SetPeriod reconfigures the monitor's wait period (seconds). It has
// no effect before Init, which installs a one-second waiter.
func (m *Monitor) SetPeriod(period float64) {
	if m.w == nil {
		return
	}
	m.w.ResetPeriod(time.Duration(period * float64(time.Second)))
}

func (m *Monitor) ValidatePolicy(policy []float64) error { return nil }

func (m *Monitor) SplitPolicy(policy []float64) ([][]float64, error) {
	children := make([][]float64, m.fanOut)
	for i := range children {
		cp := make([]float64, len(policy))
		copy(cp, policy)
		children[i] = cp
	}
	return children, nil
}

func (m *Monitor) DoSendPolicy() bool { return true }

func (m *Monitor) AggregateSample(childSamples [][]float64) ([]float64, error) {
	if len(childSamples) == 0 {
		return nil, nil
	}
	n := len(childSamples[0])
	out := make([]float64, n)
	for _, cs := range childSamples {
		for i, v := range cs {
			out[i] += v
		}
	}
	return out, nil
}

func (m *Monitor) DoSendSample() bool { return true }

func (m *Monitor) AdjustPlatform(policy []float64) error { return nil }

func (m *Monitor) DoWriteBatch() bool { return false }

func (m *Monitor) SamplePlatform() ([]float64, error) {
	out := make([]float64, len(m.handles))
	for i, h := range m.handles {
		v, err := m.platformIO.Sample(h)
		if err != nil {
			return nil, err
		}
		out[i] = v
		m.stats[m.signals[i].Name].Add(v)
	}
	m.lastSample = out
	return out, nil
}

func (m *Monitor) Wait() { m.w.Wait() }

func (m *Monitor) ReportHeader() map[string]string {
	return map[string]string{"agent": "monitor"}
}

func (m *Monitor) ReportHost() map[string]string {
	out := make(map[string]string)
	for name, acc := range m.stats {
		s := acc.Stats()
		out[name] = fmt.Sprintf("count=%d, first=%g, last=%g, min=%g, max=%g, mean=%g, std=%g",
			s.Count, s.First, s.Last, s.Min, s.Max, s.Mean, s.Std)
	}
	return out
}

func (m *Monitor) ReportRegion() map[uint64]map[string]string { return nil }

func (m *Monitor) TraceNames() []string {
	names := make([]string, len(m.signals))
	for i, s := range m.signals {
		names[i] = s.Name
	}
	return names
}

func (m *Monitor) TraceFormats() []string {
	out := make([]string, len(m.signals))
	for i := range out {
		out[i] = "%g"
	}
	return out
}

func (m *Monitor) TraceValues() []float64 { return m.lastSample }

func (m *Monitor) EnforcePolicy(policy []float64) error { return nil }

// Stats exposes the per-signal accumulator for the report writer and
// for RuntimeService.GetReport when this agent is active.
func (m *Monitor) Stats() map[string]*report.MomentAccumulator { return m.stats }
