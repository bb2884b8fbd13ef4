// Package freqbalancer implements the frequency balancer agent: the
// hardest reference agent in the core, combining epoch-boundary
// rebalancing, immediate per-tick overrides for non-application and
// network-bound cores, and an optional CLOS (class-of-service)
// mapping for SST-TF prioritized turbo.
package freqbalancer

import (
	"fmt"
	"math"
	"time"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/governor"
	"github.com/geopmd/core/internal/waiter"
)

func init() {
	agent.Register("frequency_balancer", func() agent.Agent { return New() })
}

// Hint classifies the behavior the application reported for a core's
// currently executing region.
type Hint int

const (
	HintUnset Hint = iota
	HintCompute
	HintNetwork
)

// CoreObservation is the per-core input the agent reads each tick
// from platform and application telemetry.
type CoreObservation struct {
	RegionHashValid        bool // false if hash is NaN/sentinel: "non-application"
	Hint                   Hint
	ConsecutiveNetwork     int // consecutive ticks with Hint == HintNetwork
	ConsecutiveNonNetwork  int // consecutive ticks with Hint != HintNetwork (and valid)
	ObservedFrequency      float64
	EpochTimeNonNetwork    float64 // time spent this epoch not in NETWORK, seconds
}

// Config bundles the agent's tunable thresholds, normally sourced
// from policy.
type Config struct {
	EMinEpochs   int     // E_min: minimum epochs elapsed before rebalancing
	PMinPeriods  float64 // P_min: minimum wall time since last balance, in wait periods
	KNet         int     // K_net: consecutive NETWORK samples before forcing low priority
	KNonNet      int     // K_non_net: consecutive non-NETWORK samples before lift-to-max eligibility
	EnableSSTTF  bool
}

// DefaultConfig mirrors the source implementation's documented
// defaults.
func DefaultConfig() Config {
	return Config{EMinEpochs: 2, PMinPeriods: 5, KNet: 3, KNonNet: 3, EnableSSTTF: false}
}

// Agent is the frequency balancer's per-package-level state.
type Agent struct {
	cfg Config

	numCore         int
	platformMin     float64
	platformMax     float64
	platformStep    float64
	lowPriorityFreq float64

	detector *Detector
	balancer *TimeBalancer
	gov      *governor.FrequencyGovernor
	clos     *governor.CLOSGovernor

	targets []float64 // current per-core target frequency, pre-governor-snap

	lastEpochCount float64
	epochsSinceBal int
	timeSinceBal   time.Duration
	handleNewEpoch bool

	obs []CoreObservation

	level  int
	fanOut int
	isRoot bool
	w      *waiter.Waiter
}

// New creates an unconfigured frequency balancer agent.
func New() *Agent {
	return &Agent{cfg: DefaultConfig()}
}

// SetSSTTF enables or disables the CLOS (SST-TF) classification pass.
func (a *Agent) SetSSTTF(enabled bool) { a.cfg.EnableSSTTF = enabled }

// SetThresholds overrides the epoch-boundary and override-rule
// thresholds; tests use this to avoid waiting real wall-clock time for
// P_min.
func (a *Agent) SetThresholds(eMin int, pMin float64, kNet, kNonNet int) {
	a.cfg.EMinEpochs = eMin
	a.cfg.PMinPeriods = pMin
	a.cfg.KNet = kNet
	a.cfg.KNonNet = kNonNet
}

// Configure supplies the platform bounds and per-core count; must be
// called before Init in production wiring (Init is responsible for
// platformio push calls not modeled in this package-local test
// surface).
func (a *Agent) Configure(numCore int, platformMin, platformMax, platformStep, lowPriorityFreq float64) {
	a.numCore = numCore
	a.platformMin = platformMin
	a.platformMax = platformMax
	a.platformStep = platformStep
	a.lowPriorityFreq = lowPriorityFreq
	a.detector = NewDetector(numCore, lowPriorityFreq, platformMax)
	a.balancer = NewTimeBalancer(platformMin, platformMax)
	a.gov = governor.NewFrequencyGovernor(platformMin, platformMax, platformStep, numCore)
	a.clos = governor.NewCLOSGovernor(numCore)
	a.targets = make([]float64, numCore)
	for i := range a.targets {
		a.targets[i] = platformMax
	}
	a.obs = make([]CoreObservation, numCore)
}

func (a *Agent) Init(level int, fanOut int, isRoot bool) error {
	a.level = level
	a.fanOut = fanOut
	a.isRoot = isRoot
	a.w = waiter.New(5 * time.Millisecond)
	return nil
}

func (a *Agent) ValidatePolicy(policy []float64) error {
	for i, v := range policy {
		if math.IsNaN(v) {
			policy[i] = 0
		}
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
	n := len(childSamples[0])
	out := make([]float64, n)
	for _, cs := range childSamples {
		if len(cs) != n {
			return nil, geopmerr.New(geopmerr.Invalid, "frequency balancer: child sample length mismatch")
		}
		for i, v := range cs {
			out[i] += v
		}
	}
	return out, nil
}

func (a *Agent) DoSendSample() bool { return true }

// SetObservations feeds this tick's per-core telemetry; called by the
// controller (via SamplePlatform in production) before AdjustPlatform.
func (a *Agent) SetObservations(obs []CoreObservation, epochCount float64, elapsedSinceBalance time.Duration) {
	a.obs = obs
	a.epochsSinceBal = int(epochCount - a.lastEpochCount)
	a.timeSinceBal = elapsedSinceBalance
	a.evaluateEpochBoundary(epochCount)
}

// evaluateEpochBoundary sets m_handle_new_epoch per the four
// conditions in the spec: epoch advanced by at least E_min, elapsed
// time exceeded P_min periods, neither measurement is NaN, and the
// previous epoch's measurements are complete (modeled here as "every
// core reported a finite EpochTimeNonNetwork").
func (a *Agent) evaluateEpochBoundary(epochCount float64) {
	a.handleNewEpoch = false
	if math.IsNaN(epochCount) || math.IsNaN(a.lastEpochCount) {
		return
	}
	if a.epochsSinceBal < a.cfg.EMinEpochs {
		return
	}
	minElapsed := time.Duration(a.cfg.PMinPeriods * float64(a.w.Period()))
	if a.timeSinceBal < minElapsed {
		return
	}
	for _, o := range a.obs {
		if math.IsNaN(o.EpochTimeNonNetwork) {
			return
		}
	}
	a.handleNewEpoch = true
}

func (a *Agent) AdjustPlatform(policy []float64) error {
	if a.handleNewEpoch {
		a.rebalance()
		a.lastEpochCount += float64(a.epochsSinceBal)
		a.handleNewEpoch = false // consumed exactly once
	}
	a.applyImmediateOverrides()

	if err := a.gov.AdjustPlatform(a.targets); err != nil {
		return err
	}
	if a.cfg.EnableSSTTF {
		return a.applyCLOS()
	}
	return nil
}

// rebalance implements rule 1: epoch-boundary rebalancing via the
// FrequencyLimitDetector + FrequencyTimeBalancer pipeline.
func (a *Agent) rebalance() {
	observedFreqs := make([]float64, a.numCore)
	times := make([]float64, a.numCore)
	for i, o := range a.obs {
		observedFreqs[i] = o.ObservedFrequency
		times[i] = o.EpochTimeNonNetwork
	}
	a.detector.UpdateMaxFrequencyEstimates(observedFreqs)

	limits := make([][]FreqLimitPoint, a.numCore)
	for i := range limits {
		limits[i] = a.detector.GetCoreFrequencyLimits(i)
	}
	newTargets := a.balancer.BalanceFrequenciesByTime(times, a.targets, observedFreqs, limits, a.lowPriorityFreq)
	for i, t := range newTargets {
		a.targets[i] = governor.SnapTowardPrevious(a.targets[i], t, a.platformMin, a.platformMax, a.platformStep)
	}
}

// applyImmediateOverrides implements rule 2: per-tick forced
// frequencies for non-application and network-bound cores, and the
// per-package safety lift when no core is high-priority-and-active.
func (a *Agent) applyImmediateOverrides() {
	forced := make([]bool, a.numCore)
	anyHighPriorityActive := false
	for i, o := range a.obs {
		if !o.RegionHashValid {
			a.targets[i] = a.lowPriorityFreq
			forced[i] = true
			continue
		}
		if o.ConsecutiveNetwork >= a.cfg.KNet {
			a.targets[i] = a.lowPriorityFreq
			forced[i] = true
			continue
		}
		if a.targets[i] > a.lowPriorityFreq {
			anyHighPriorityActive = true
		}
	}
	if !anyHighPriorityActive {
		for i, o := range a.obs {
			if forced[i] {
				continue
			}
			if o.RegionHashValid && o.ConsecutiveNonNetwork >= a.cfg.KNonNet {
				a.targets[i] = a.platformMax
			}
		}
	}
}

// applyCLOS implements rule 3: HIGH_PRIORITY if the core's immediate
// target exceeds its low-priority floor, else LOW_PRIORITY.
func (a *Agent) applyCLOS() error {
	classes := make([]governor.CLOSClass, a.numCore)
	for i, t := range a.targets {
		if t > a.lowPriorityFreq {
			classes[i] = governor.CLOSHighPriority
		} else {
			classes[i] = governor.CLOSLowPriority
		}
	}
	return a.clos.AdjustPlatform(classes)
}

func (a *Agent) DoWriteBatch() bool {
	if a.gov.DoWriteBatch() {
		return true
	}
	return a.cfg.EnableSSTTF && a.clos.DoWriteBatch()
}

func (a *Agent) SamplePlatform() ([]float64, error) {
	out := make([]float64, a.numCore)
	copy(out, a.gov.Applied())
	return out, nil
}

func (a *Agent) Wait() { a.w.Wait() }

func (a *Agent) ReportHeader() map[string]string {
	return map[string]string{"agent": "frequency_balancer"}
}

func (a *Agent) ReportHost() map[string]string {
	return map[string]string{"target_time": formatFloat(a.balancer.GetTargetTime())}
}

func (a *Agent) ReportRegion() map[uint64]map[string]string { return nil }

func (a *Agent) TraceNames() []string {
	names := make([]string, a.numCore)
	for i := range names {
		names[i] = "core_freq_target"
	}
	return names
}

func (a *Agent) TraceFormats() []string {
	out := make([]string, a.numCore)
	for i := range out {
		out[i] = "%g"
	}
	return out
}

func (a *Agent) TraceValues() []float64 {
	return a.gov.Applied()
}

func (a *Agent) EnforcePolicy(policy []float64) error {
	return a.AdjustPlatform(policy)
}

// AppliedFrequencies exposes the governor's currently applied,
// clamped, and step-snapped frequency vector for tests and reports.
func (a *Agent) AppliedFrequencies() []float64 { return a.gov.Applied() }

// AppliedCLOS exposes the CLOS governor's currently applied class vector.
func (a *Agent) AppliedCLOS() []governor.CLOSClass { return a.clos.Applied() }

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%g", v)
}
