// Package governor translates agent requests into bounded, quantized
// platform control writes: frequency, package power, and CLOS
// (class-of-service) priority association.
package governor

import (
	"math"

	"github.com/geopmd/core/internal/geopmerr"
)

// SnapTowardPrevious rounds target to the nearest multiple of step,
// choosing the rounding direction so the governor never overshoots
// the requested direction of change relative to prev: when
// decreasing, round up to the nearest step; when increasing, round
// down. The result is then clamped to [min, max].
func SnapTowardPrevious(prev, target, min, max, step float64) float64 {
	if step <= 0 {
		return clamp(target, min, max)
	}
	var snapped float64
	switch {
	case target < prev:
		snapped = math.Ceil(target/step) * step
	case target > prev:
		snapped = math.Floor(target/step) * step
	default:
		snapped = target
	}
	return clamp(snapped, min, max)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// FrequencyGovernor writes per-domain-instance frequency controls,
// clamping into [min,max] and snapping to the platform's quantization
// step using SnapTowardPrevious.
type FrequencyGovernor struct {
	min, max, step float64
	applied        []float64
	changed        bool
}

// NewFrequencyGovernor creates a governor bounded by the platform's
// min/max frequency and quantization step (all read once at init).
func NewFrequencyGovernor(min, max, step float64, numDomain int) *FrequencyGovernor {
	applied := make([]float64, numDomain)
	for i := range applied {
		applied[i] = min
	}
	return &FrequencyGovernor{min: min, max: max, step: step, applied: applied}
}

// AdjustPlatform clamps and snaps each requested frequency, recording
// whether any element changed from the last applied vector.
func (g *FrequencyGovernor) AdjustPlatform(requests []float64) error {
	if len(requests) != len(g.applied) {
		return geopmerr.New(geopmerr.Invalid, "frequency governor: request length %d != domain count %d", len(requests), len(g.applied))
	}
	g.changed = false
	for i, req := range requests {
		snapped := SnapTowardPrevious(g.applied[i], req, g.min, g.max, g.step)
		if snapped != g.applied[i] {
			g.changed = true
		}
		g.applied[i] = snapped
	}
	return nil
}

// DoWriteBatch reports whether the last AdjustPlatform changed any
// control value.
func (g *FrequencyGovernor) DoWriteBatch() bool { return g.changed }

// Applied returns the currently applied (post-clamp, post-snap)
// frequency vector.
func (g *FrequencyGovernor) Applied() []float64 {
	out := make([]float64, len(g.applied))
	copy(out, g.applied)
	return out
}

// Bounds returns the governor's configured min, max, and step.
func (g *FrequencyGovernor) Bounds() (min, max, step float64) {
	return g.min, g.max, g.step
}

// PowerGovernor writes a single package-power budget control, clamped
// into [min,max], enforcing a minimum averaging time window on the
// underlying hardware control.
type PowerGovernor struct {
	min, max  float64
	minWindow float64 // seconds
	applied   float64
	changed   bool
}

// NewPowerGovernor creates a power governor bounded by min/max watts
// and the minimum hardware averaging window in seconds.
func NewPowerGovernor(min, max, minWindow float64) *PowerGovernor {
	return &PowerGovernor{min: min, max: max, minWindow: minWindow, applied: math.NaN()}
}

// AdjustPlatform clamps the requested budget into [min,max].
func (g *PowerGovernor) AdjustPlatform(requestWatts float64) {
	clamped := clamp(requestWatts, g.min, g.max)
	g.changed = clamped != g.applied
	g.applied = clamped
}

// DoWriteBatch reports whether the last AdjustPlatform changed the budget.
func (g *PowerGovernor) DoWriteBatch() bool { return g.changed }

// Applied returns the currently applied power budget.
func (g *PowerGovernor) Applied() float64 { return g.applied }

// MinWindow returns the minimum averaging window enforced on the
// underlying control.
func (g *PowerGovernor) MinWindow() float64 { return g.minWindow }

// CLOSClass is a per-core class-of-service priority, 0 highest.
type CLOSClass int

const (
	CLOSHighPriority CLOSClass = 0
	CLOSLowPriority  CLOSClass = 3
)

// CLOSConfig describes one of the four configurable priority classes.
type CLOSConfig struct {
	PriorityWeight int
	MinFrequency   float64
	MaxFrequency   float64
}

// CLOSGovernor writes per-core class-of-service association, with the
// four class configurations and prioritized-turbo enable/disable
// written once at Init.
type CLOSGovernor struct {
	classes []CLOSConfig
	applied []CLOSClass
	enabled bool
	changed bool
}

// NewCLOSGovernor creates a CLOS governor for numCore cores.
func NewCLOSGovernor(numCore int) *CLOSGovernor {
	applied := make([]CLOSClass, numCore)
	for i := range applied {
		applied[i] = CLOSLowPriority
	}
	return &CLOSGovernor{applied: applied}
}

// Init writes the four class configurations and enables prioritized
// turbo distribution.
func (g *CLOSGovernor) Init(classes [4]CLOSConfig) {
	g.classes = classes[:]
	g.enabled = true
}

// Disable reverses Init, disabling prioritized turbo.
func (g *CLOSGovernor) Disable() {
	g.enabled = false
}

// Enabled reports whether SST-TF prioritized turbo is enabled.
func (g *CLOSGovernor) Enabled() bool { return g.enabled }

// AdjustPlatform writes the per-core class vector only when it
// differs from the cached one.
func (g *CLOSGovernor) AdjustPlatform(classes []CLOSClass) error {
	if len(classes) != len(g.applied) {
		return geopmerr.New(geopmerr.Invalid, "CLOS governor: request length %d != core count %d", len(classes), len(g.applied))
	}
	g.changed = false
	for i, c := range classes {
		if c != g.applied[i] {
			g.changed = true
		}
		g.applied[i] = c
	}
	return nil
}

// DoWriteBatch reports whether the last AdjustPlatform changed the class vector.
func (g *CLOSGovernor) DoWriteBatch() bool { return g.changed }

// Applied returns the currently applied per-core class vector.
func (g *CLOSGovernor) Applied() []CLOSClass {
	out := make([]CLOSClass, len(g.applied))
	copy(out, g.applied)
	return out
}
