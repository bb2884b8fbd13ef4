// Package platformio implements PlatformIO: the single entry point
// through which agents request scalar signals and emit scalar
// controls, dispatched to registered IOGroup providers and batched
// into one aggregated read and one aggregated write per controller
// tick.
package platformio

import (
	"fmt"
	"math"
	"sort"

	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// IOGroup is a provider exposing a named set of signals and/or
// controls. Implementations register themselves with a PlatformIO at
// construction time.
type IOGroup interface {
	// Name identifies the provider for diagnostics.
	Name() string
	// SignalNames lists the signals this group provides.
	SignalNames() []string
	// ControlNames lists the controls this group provides.
	ControlNames() []string
	// SignalDomainType returns the domain a named signal is defined over.
	SignalDomainType(name string) (topo.Domain, error)
	// ControlDomainType returns the domain a named control is defined over.
	ControlDomainType(name string) (topo.Domain, error)
	// PushSignal registers interest in a signal instance, returning a
	// group-local handle.
	PushSignal(name string, domain topo.Domain, domainIdx int) (int, error)
	// PushControl registers interest in a control instance, returning
	// a group-local handle.
	PushControl(name string, domain topo.Domain, domainIdx int) (int, error)
	// ReadBatch performs this group's single aggregated read for the tick.
	ReadBatch() error
	// Sample returns the most recently read value for a pushed signal handle.
	Sample(handle int) (float64, error)
	// Adjust stages a value to write for a pushed control handle.
	Adjust(handle int, value float64) error
	// WriteBatch performs this group's single aggregated write for the tick.
	WriteBatch() error
	// ReadSignal performs an out-of-band single-shot read, bypassing
	// batched state.
	ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error)
	// WriteControl performs an out-of-band single-shot write.
	WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error
	// AggFunction returns the default aggregation function name for a signal.
	AggFunction(name string) string
	// FormatFunction returns the default formatter name for a signal.
	FormatFunction(name string) string
	// SignalBehavior classifies how a signal evolves over time.
	SignalBehavior(name string) int
}

type pushedSignal struct {
	group     IOGroup
	handle    int
	name      string
	domain    topo.Domain
	domainIdx int
	value     float64
}

type pushedControl struct {
	group     IOGroup
	handle    int
	name      string
	domain    topo.Domain
	domainIdx int
}

// PlatformIO is the aggregating dispatcher described in the core
// design. Each ReadBatch call runs the ReadBatch of every registered
// group once, whether or not any of its signals were pushed; no
// reduced read plan is computed from the pushed signals.
type PlatformIO struct {
	groups       []IOGroup
	byName       map[string]IOGroup
	controlByName map[string]IOGroup
	signals      []*pushedSignal
	signalIdx    map[string]int // "name/domain/idx" -> index into signals
	controls     []*pushedControl
	controlIdx   map[string]int
	hasRead      bool
	// derived holds post-read evaluators executed after every raw
	// IOGroup ReadBatch, in dependency order. Each returns the value
	// to store at the given signal index.
	derived []derivedEval
}

type derivedEval struct {
	signalIdx int
	eval      func() float64
}

// New creates an empty PlatformIO with no registered groups.
func New() *PlatformIO {
	return &PlatformIO{
		byName:        make(map[string]IOGroup),
		controlByName: make(map[string]IOGroup),
		signalIdx:     make(map[string]int),
		controlIdx:    make(map[string]int),
	}
}

// Register adds an IOGroup as a provider of its advertised signals
// and controls. Later registrations take precedence on name
// collisions, matching the source's provider-priority convention
// (more specific groups registered after general ones).
func (p *PlatformIO) Register(g IOGroup) {
	p.groups = append(p.groups, g)
	for _, n := range g.SignalNames() {
		p.byName[n] = g
	}
	for _, n := range g.ControlNames() {
		p.controlByName[n] = g
	}
}

func key(name string, domain topo.Domain, domainIdx int) string {
	return fmt.Sprintf("%s\x00%s\x00%d", name, domain, domainIdx)
}

// PushSignal registers interest in (name,domain,domainIdx), returning
// a stable handle for later Sample calls. Idempotent per tuple.
func (p *PlatformIO) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	k := key(name, domain, domainIdx)
	if idx, ok := p.signalIdx[k]; ok {
		return idx, nil
	}
	g, ok := p.byName[name]
	if !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "unknown signal %q", name)
	}
	declaredDomain, err := g.SignalDomainType(name)
	if err != nil {
		return 0, err
	}
	if declaredDomain != domain {
		return 0, geopmerr.New(geopmerr.Invalid, "signal %q is defined on domain %s, not %s", name, declaredDomain, domain)
	}
	handle, err := g.PushSignal(name, domain, domainIdx)
	if err != nil {
		return 0, err
	}
	idx := len(p.signals)
	p.signals = append(p.signals, &pushedSignal{group: g, handle: handle, name: name, domain: domain, domainIdx: domainIdx})
	p.signalIdx[k] = idx
	return idx, nil
}

// PushControl registers interest in a control instance, returning a
// stable handle for later Adjust calls. Idempotent per tuple.
func (p *PlatformIO) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	k := key(name, domain, domainIdx)
	if idx, ok := p.controlIdx[k]; ok {
		return idx, nil
	}
	g, ok := p.controlByName[name]
	if !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "unknown control %q", name)
	}
	declaredDomain, err := g.ControlDomainType(name)
	if err != nil {
		return 0, err
	}
	if declaredDomain != domain {
		return 0, geopmerr.New(geopmerr.Invalid, "control %q is defined on domain %s, not %s", name, declaredDomain, domain)
	}
	handle, err := g.PushControl(name, domain, domainIdx)
	if err != nil {
		return 0, err
	}
	idx := len(p.controls)
	p.controls = append(p.controls, &pushedControl{group: g, handle: handle, name: name, domain: domain, domainIdx: domainIdx})
	p.controlIdx[k] = idx
	return idx, nil
}

// PushDerived registers a signal computed from other pushed signals
// (e.g. a derivative or scale node). eval is invoked after every raw
// IOGroup ReadBatch, in registration order, so dependencies must be
// pushed (and thus evaluated) before the signals that use them —
// mirroring the dependency-ordered evaluation the design requires.
func (p *PlatformIO) PushDerived(name string, eval func() float64) int {
	idx := len(p.signals)
	p.signals = append(p.signals, &pushedSignal{name: name})
	p.derived = append(p.derived, derivedEval{signalIdx: idx, eval: eval})
	return idx
}

// ReadBatch executes each registered group's aggregated read exactly
// once, then evaluates derived signals in dependency (registration)
// order.
func (p *PlatformIO) ReadBatch() error {
	done := make(map[IOGroup]bool)
	// Deterministic order for reproducible test traces.
	ordered := make([]IOGroup, len(p.groups))
	copy(ordered, p.groups)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name() < ordered[j].Name() })
	for _, g := range ordered {
		if done[g] {
			continue
		}
		if err := g.ReadBatch(); err != nil {
			return err
		}
		done[g] = true
	}
	for _, s := range p.signals {
		if s.group == nil {
			continue // derived, filled below
		}
		v, err := s.group.Sample(s.handle)
		if err != nil {
			return err
		}
		s.value = v
	}
	p.hasRead = true
	for _, d := range p.derived {
		p.signals[d.signalIdx].value = d.eval()
	}
	return nil
}

// WriteBatch executes each group with a pending control write exactly once.
func (p *PlatformIO) WriteBatch() error {
	done := make(map[IOGroup]bool)
	for _, c := range p.controls {
		if done[c.group] {
			continue
		}
		if err := c.group.WriteBatch(); err != nil {
			return err
		}
		done[c.group] = true
	}
	return nil
}

// Sample returns the value captured at the most recent ReadBatch for
// the given handle. Fails with Ordering if called before any
// ReadBatch.
func (p *PlatformIO) Sample(handle int) (float64, error) {
	if !p.hasRead {
		return math.NaN(), geopmerr.New(geopmerr.Ordering, "sample() called before any read_batch()")
	}
	if handle < 0 || handle >= len(p.signals) {
		return math.NaN(), geopmerr.New(geopmerr.Invalid, "signal handle %d out of range", handle)
	}
	return p.signals[handle].value, nil
}

// Adjust stages a control write for the given handle, applied at the
// next WriteBatch.
func (p *PlatformIO) Adjust(handle int, value float64) error {
	if handle < 0 || handle >= len(p.controls) {
		return geopmerr.New(geopmerr.Invalid, "control handle %d out of range", handle)
	}
	c := p.controls[handle]
	return c.group.Adjust(c.handle, value)
}

// ReadSignal performs an out-of-band single-shot read that does not
// disturb batched state.
func (p *PlatformIO) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	g, ok := p.byName[name]
	if !ok {
		return math.NaN(), geopmerr.New(geopmerr.NotSupported, "unknown signal %q", name)
	}
	return g.ReadSignal(name, domain, domainIdx)
}

// WriteControl performs an out-of-band single-shot write.
func (p *PlatformIO) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	g, ok := p.controlByName[name]
	if !ok {
		return geopmerr.New(geopmerr.NotSupported, "unknown control %q", name)
	}
	return g.WriteControl(name, domain, domainIdx, value)
}

// SignalDomainType returns the domain a named signal is declared on.
func (p *PlatformIO) SignalDomainType(name string) (topo.Domain, error) {
	g, ok := p.byName[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "unknown signal %q", name)
	}
	return g.SignalDomainType(name)
}

// ControlDomainType returns the domain a named control is declared on.
func (p *PlatformIO) ControlDomainType(name string) (topo.Domain, error) {
	g, ok := p.controlByName[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "unknown control %q", name)
	}
	return g.ControlDomainType(name)
}
