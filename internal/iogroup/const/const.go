// Package constiogroup implements a constant/config-sourced IOGroup:
// signals backed by fixed values (profile defaults, test fixtures)
// and controls that simply record the last-written value. It is the
// simplest concrete IOGroup and is used directly by unit tests and
// the end-to-end monitor-agent scenario.
package constiogroup

import (
	"strconv"

	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// Group is a const-valued IOGroup. Values may be updated between
// ticks by the test or driver that owns it (e.g. to script a
// sequence of readings), and are otherwise stable.
type Group struct {
	name       string
	domains    map[string]topo.Domain
	values     map[string]float64 // "name/idx" -> value
	pushed     []pushedEntry
	written    map[int]float64
}

type pushedEntry struct {
	name      string
	domain    topo.Domain
	domainIdx int
	isControl bool
}

// New creates a Group named name with the given per-signal domain
// declarations.
func New(name string, domains map[string]topo.Domain) *Group {
	return &Group{
		name:    name,
		domains: domains,
		values:  make(map[string]float64),
		written: make(map[int]float64),
	}
}

func valKey(name string, idx int) string {
	return name + "#" + strconv.Itoa(idx)
}

// Set assigns the value a signal will report for a given domain
// index, effective on the next ReadBatch.
func (g *Group) Set(name string, domainIdx int, value float64) {
	g.values[valKey(name, domainIdx)] = value
}

func (g *Group) Name() string { return g.name }

func (g *Group) SignalNames() []string {
	names := make([]string, 0, len(g.domains))
	for n := range g.domains {
		names = append(names, n)
	}
	return names
}

func (g *Group) ControlNames() []string { return g.SignalNames() }

func (g *Group) SignalDomainType(name string) (topo.Domain, error) {
	d, ok := g.domains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "const group: unknown signal %q", name)
	}
	return d, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	return g.SignalDomainType(name)
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	idx := len(g.pushed)
	g.pushed = append(g.pushed, pushedEntry{name: name, domain: domain, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	idx := len(g.pushed)
	g.pushed = append(g.pushed, pushedEntry{name: name, domain: domain, domainIdx: domainIdx, isControl: true})
	return idx, nil
}

func (g *Group) ReadBatch() error { return nil }

func (g *Group) Sample(handle int) (float64, error) {
	if handle < 0 || handle >= len(g.pushed) {
		return 0, geopmerr.New(geopmerr.Invalid, "const group: bad handle %d", handle)
	}
	e := g.pushed[handle]
	return g.values[valKey(e.name, e.domainIdx)], nil
}

func (g *Group) Adjust(handle int, value float64) error {
	if handle < 0 || handle >= len(g.pushed) {
		return geopmerr.New(geopmerr.Invalid, "const group: bad handle %d", handle)
	}
	g.written[handle] = value
	return nil
}

func (g *Group) WriteBatch() error { return nil }

// Written returns the last value Adjusted for a control handle.
func (g *Group) Written(handle int) float64 { return g.written[handle] }

func (g *Group) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	return g.values[valKey(name, domainIdx)], nil
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	g.values[valKey(name, domainIdx)] = value
	return nil
}

func (g *Group) AggFunction(name string) string   { return "average" }
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int    { return 0 }
