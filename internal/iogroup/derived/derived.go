// Package derived implements an IOGroup whose signals are computed
// from other IOGroups' pushed signals rather than read from hardware:
// derivatives, scaling, and cross-instance aggregation, composed from
// internal/signal's graph nodes over whatever upstream signals the
// caller wires in at construction time.
package derived

import (
	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/signal"
	"github.com/geopmd/core/internal/topo"
)

// updater is implemented by graph nodes (signal.Derivative) that must
// observe a new sample once per tick before Sample reflects it. Nodes
// composed purely from Sample() chains (signal.Scale, signal.Aggregate)
// need no per-tick update since they recompute on every call.
type updater interface {
	Update()
}

type entry struct {
	domain topo.Domain
	node   signal.Signal
}

// Group is the derived-signal IOGroup. It exposes no controls.
type Group struct {
	entries map[string]entry
	order   []string // registration order, dependency order is the caller's responsibility
	pushed  []string // handle -> name
}

// New creates an empty derived-signal group.
func New() *Group {
	return &Group{entries: make(map[string]entry)}
}

// Register adds a named derived signal over domain, computed by node.
// Callers must register a node's upstream dependencies before the
// node itself so Update order matches the dependency graph.
func (g *Group) Register(name string, domain topo.Domain, node signal.Signal) {
	if _, exists := g.entries[name]; !exists {
		g.order = append(g.order, name)
	}
	g.entries[name] = entry{domain: domain, node: node}
}

func (g *Group) Name() string { return "derived" }

func (g *Group) SignalNames() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)
	return names
}

func (g *Group) ControlNames() []string { return nil }

func (g *Group) SignalDomainType(name string) (topo.Domain, error) {
	e, ok := g.entries[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "derived group: unknown signal %q", name)
	}
	return e.domain, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "derived group: no controls")
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := g.entries[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "derived group: unknown signal %q", name)
	}
	handle := len(g.pushed)
	g.pushed = append(g.pushed, name)
	return handle, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	return 0, geopmerr.New(geopmerr.NotSupported, "derived group: no controls")
}

// ReadBatch advances every registered node that requires a per-tick
// update, in registration order, so a node may depend on another
// registered earlier.
func (g *Group) ReadBatch() error {
	for _, name := range g.order {
		if u, ok := g.entries[name].node.(updater); ok {
			u.Update()
		}
	}
	return nil
}

func (g *Group) Sample(handle int) (float64, error) {
	if handle < 0 || handle >= len(g.pushed) {
		return 0, geopmerr.New(geopmerr.Invalid, "derived group: bad handle %d", handle)
	}
	return g.entries[g.pushed[handle]].node.Sample(), nil
}

func (g *Group) Adjust(handle int, value float64) error {
	return geopmerr.New(geopmerr.NotSupported, "derived group: no controls")
}

func (g *Group) WriteBatch() error { return nil }

func (g *Group) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	e, ok := g.entries[name]
	if !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "derived group: unknown signal %q", name)
	}
	return e.node.Sample(), nil
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	return geopmerr.New(geopmerr.NotSupported, "derived group: no controls")
}

func (g *Group) AggFunction(name string) string    { return "average" }
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int    { return int(signal.BehaviorVariable) }
