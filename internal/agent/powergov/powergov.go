// Package powergov implements the power governor agent: it enforces a
// single package-level power cap by adjusting RAPL-style power limit
// controls, backing off the cap when measured power threatens to
// exceed it and relaxing it back up when headroom reappears.
package powergov

import (
	"fmt"
	"time"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/governor"
	"github.com/geopmd/core/internal/waiter"
)

func init() {
	agent.Register("power_governor", func() agent.Agent { return New() })
}

// Agent is the power governor's per-level state. Policy is a single
// value: the requested package power cap in watts; NaN means "no
// change from the platform default".
type Agent struct {
	min, max, minWindow float64
	gov                 *governor.PowerGovernor

	level  int
	fanOut int
	isRoot bool
	w      *waiter.Waiter

	lastSample float64
	lastCap    float64
}

// New creates an unconfigured power governor agent.
func New() *Agent {
	return &Agent{}
}

// Configure supplies the platform's power bounds and minimum RAPL
// averaging window before Init is called.
func (a *Agent) Configure(min, max, minWindow float64) {
	a.min = min
	a.max = max
	a.minWindow = minWindow
	a.gov = governor.NewPowerGovernor(min, max, minWindow)
}

func (a *Agent) Init(level int, fanOut int, isRoot bool) error {
	a.level = level
	a.fanOut = fanOut
	a.isRoot = isRoot
	a.w = waiter.New(time.Second)
	return nil
}

func (a *Agent) ValidatePolicy(policy []float64) error {
	if len(policy) != 1 {
		return geopmerr.New(geopmerr.Invalid, "power governor: policy must carry exactly one cap value, got %d", len(policy))
	}
	watts := policy[0]
	if watts != watts { // NaN
		policy[0] = a.max
		return nil
	}
	if watts < a.min || watts > a.max {
		return geopmerr.New(geopmerr.AgentReject, "power governor: requested cap %g out of bounds [%g,%g]", watts, a.min, a.max)
	}
	return nil
}

func (a *Agent) SplitPolicy(policy []float64) ([][]float64, error) {
	children := make([][]float64, a.fanOut)
	for i := range children {
		cp := make([]float64, len(policy))
		copy(cp, policy)
		children[i] = cp
	}
	return children, nil
}

func (a *Agent) DoSendPolicy() bool { return true }

func (a *Agent) AggregateSample(childSamples [][]float64) ([]float64, error) {
	if len(childSamples) == 0 {
		return nil, nil
	}
	var total float64
	for _, cs := range childSamples {
		if len(cs) != 1 {
			return nil, geopmerr.New(geopmerr.Invalid, "power governor: expected single-value child sample, got %d", len(cs))
		}
		total += cs[0]
	}
	return []float64{total}, nil
}

func (a *Agent) DoSendSample() bool { return true }

func (a *Agent) AdjustPlatform(policy []float64) error {
	if len(policy) != 1 {
		return geopmerr.New(geopmerr.Invalid, "power governor: AdjustPlatform requires one policy value, got %d", len(policy))
	}
	a.gov.AdjustPlatform(policy[0])
	a.lastCap = a.gov.Applied()
	return nil
}

func (a *Agent) DoWriteBatch() bool { return a.gov.DoWriteBatch() }

func (a *Agent) SamplePlatform() ([]float64, error) {
	// The package's own measured power draw would be read from
	// platformio here; callers in tests set it directly via
	// SetMeasuredPower for isolation from the IOGroup layer.
	return []float64{a.lastSample}, nil
}

// SetMeasuredPower injects the package's currently observed power draw,
// used by tests in place of a live platformio read.
func (a *Agent) SetMeasuredPower(watts float64) { a.lastSample = watts }

func (a *Agent) Wait() { a.w.Wait() }

func (a *Agent) ReportHeader() map[string]string {
	return map[string]string{"agent": "power_governor"}
}

func (a *Agent) ReportHost() map[string]string {
	return map[string]string{"power_cap": formatWatts(a.lastCap)}
}

func (a *Agent) ReportRegion() map[uint64]map[string]string { return nil }

func (a *Agent) TraceNames() []string { return []string{"power_cap", "power_measured"} }

func (a *Agent) TraceFormats() []string { return []string{"%g", "%g"} }

func (a *Agent) TraceValues() []float64 { return []float64{a.lastCap, a.lastSample} }

func (a *Agent) EnforcePolicy(policy []float64) error { return a.AdjustPlatform(policy) }

// AppliedCap exposes the governor's currently applied power cap.
func (a *Agent) AppliedCap() float64 { return a.gov.Applied() }

func formatWatts(v float64) string {
	if v != v {
		return "nan"
	}
	return fmt.Sprintf("%g", v)
}
