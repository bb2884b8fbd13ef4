// Package accelerator implements a stub accelerator-runtime IOGroup:
// constant signals over the board-accelerator and accelerator-chip
// domains, for hosts where no real accelerator runtime client is
// wired in. Grounded on the const-config IOGroup pattern
// (internal/iogroup/const): values are set by whatever owns the
// Group (a real runtime client, once one exists, or a test/profile
// default) and reported verbatim.
package accelerator

import (
	"strconv"

	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// Group is the stub accelerator IOGroup.
type Group struct {
	domains map[string]topo.Domain
	values  map[string]float64
	pushed  []pushedEntry
}

type pushedEntry struct {
	name      string
	domainIdx int
}

// SignalSet names the signals this stub exposes and the domain each
// is defined over.
var SignalSet = map[string]topo.Domain{
	"ACCELERATOR_UTILIZATION_PCT": topo.DomainBoardAccelerator,
	"ACCELERATOR_POWER_WATTS":     topo.DomainBoardAccelerator,
	"ACCELERATOR_MEMORY_USED_MIB": topo.DomainAcceleratorChip,
	"ACCELERATOR_TEMPERATURE_C":   topo.DomainAcceleratorChip,
}

// New creates a Group reporting zero for every signal in SignalSet
// until Set is called.
func New() *Group {
	return &Group{domains: SignalSet, values: make(map[string]float64)}
}

func valKey(name string, idx int) string { return name + "#" + strconv.Itoa(idx) }

// Set assigns the value a signal reports for a given domain index.
func (g *Group) Set(name string, domainIdx int, value float64) {
	g.values[valKey(name, domainIdx)] = value
}

func (g *Group) Name() string { return "accelerator" }

func (g *Group) SignalNames() []string {
	names := make([]string, 0, len(g.domains))
	for n := range g.domains {
		names = append(names, n)
	}
	return names
}

func (g *Group) ControlNames() []string { return nil }

func (g *Group) SignalDomainType(name string) (topo.Domain, error) {
	d, ok := g.domains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "accelerator group: unknown signal %q", name)
	}
	return d, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "accelerator group: no controls")
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := g.domains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "accelerator group: unknown signal %q", name)
	}
	idx := len(g.pushed)
	g.pushed = append(g.pushed, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	return 0, geopmerr.New(geopmerr.NotSupported, "accelerator group: no controls")
}

func (g *Group) ReadBatch() error { return nil }

func (g *Group) Sample(handle int) (float64, error) {
	if handle < 0 || handle >= len(g.pushed) {
		return 0, geopmerr.New(geopmerr.Invalid, "accelerator group: bad handle %d", handle)
	}
	e := g.pushed[handle]
	return g.values[valKey(e.name, e.domainIdx)], nil
}

func (g *Group) Adjust(handle int, value float64) error {
	return geopmerr.New(geopmerr.NotSupported, "accelerator group: no controls")
}

func (g *Group) WriteBatch() error { return nil }

func (g *Group) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	if _, ok := g.domains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "accelerator group: unknown signal %q", name)
	}
	return g.values[valKey(name, domainIdx)], nil
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	return geopmerr.New(geopmerr.NotSupported, "accelerator group: no controls")
}

func (g *Group) AggFunction(name string) string    { return "average" }
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int    { return 1 }
