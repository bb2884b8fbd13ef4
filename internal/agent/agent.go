// Package agent defines the Agent contract every decision module at
// every tree level must satisfy, and the compiled-in registry of
// named agent factories that replaces the source's dlopen-based
// plugin discovery.
package agent

import "sort"

// Agent is implemented once per decision module (monitor, frequency
// balancer, power governor, ...) and instantiated once per tree level
// a node owns.
type Agent interface {
	// Init allocates per-level state. fanOut is the number of
	// children this level sends policy to (0 at the leaf level is
	// meaningless; leaves don't split policy down further). isRoot
	// marks the top level owned by this node in the whole tree (not
	// necessarily level == max level, for a node that owns a subtree).
	Init(level int, fanOut int, isRoot bool) error

	// ValidatePolicy normalizes policy in place: NaN entries become
	// documented defaults, out-of-range entries are clamped, and
	// mutually exclusive combinations are rejected with an
	// agent-reject error. Once accepted, SplitPolicy and
	// AdjustPlatform must never fail on the same policy.
	ValidatePolicy(policy []float64) error

	// SplitPolicy partitions or replicates the incoming policy into
	// one policy vector per child.
	SplitPolicy(policy []float64) (childPolicies [][]float64, err error)

	// DoSendPolicy reports whether the last SplitPolicy produced a
	// new message worth sending this tick.
	DoSendPolicy() bool

	// AggregateSample reduces the children's sample vectors to one
	// vector for this level.
	AggregateSample(childSamples [][]float64) (sample []float64, err error)

	// DoSendSample reports whether to emit the aggregated sample
	// upward (or to the external sink, at the root) this tick.
	DoSendSample() bool

	// AdjustPlatform computes controls from policy and the most
	// recently sampled platform state. Valid at the leaf level only.
	// Must be idempotent for an unchanged policy.
	AdjustPlatform(policy []float64) error

	// DoWriteBatch reports whether the last AdjustPlatform changed
	// any control value.
	DoWriteBatch() bool

	// SamplePlatform reads platformio.Sample for every signal this
	// agent needs and computes any derived per-tick state.
	SamplePlatform() (sample []float64, err error)

	// Wait blocks until the period boundary (delegates to a Waiter).
	Wait()

	// ReportHeader returns header key-value pairs; only the root-level
	// agent's header is emitted by the controller.
	ReportHeader() map[string]string
	// ReportHost returns per-host key-value pairs.
	ReportHost() map[string]string
	// ReportRegion returns per-region-hash key-value pairs.
	ReportRegion() map[uint64]map[string]string

	// TraceNames returns the trace column schema.
	TraceNames() []string
	// TraceFormats returns a printf-style format string per column.
	TraceFormats() []string
	// TraceValues returns one row of values for the current tick.
	TraceValues() []float64

	// EnforcePolicy applies a policy once, outside the controller
	// loop (used by one-shot tools rather than the periodic loop).
	EnforcePolicy(policy []float64) error
}

// Factory constructs a fresh Agent instance.
type Factory func() Agent

// Registry is the compiled-in name → factory mapping. External agents
// are added here via a build-time import, never via runtime dlopen,
// per the core's design notes.
var registry = make(map[string]Factory)

// Register adds a named agent factory to the compiled-in registry.
// Intended to be called from package init() in the agent's own
// subpackage.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New constructs an agent by name, or (nil, false) if unregistered.
func New(name string) (Agent, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Names returns the sorted list of registered agent names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
