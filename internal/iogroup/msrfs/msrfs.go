// Package msrfs implements the msrfs IOGroup: a timestamp counter,
// a RAPL package energy counter, and a performance-control ratio
// register, read/written through /dev/cpu/*/msr. ReadBatch makes one
// pass per tick over the pushed signals, the way the teacher's
// CPUCollector samples /proc/stat once per pass; each signal in that
// pass still opens the device and issues its own read.
// The core does not define MSR semantics (that's out of scope per the
// PlatformIO contract); this group picks one illustrative fixed-offset
// MSR per signal/control, matching the kind of raw 8-byte
// register access a real implementation would perform.
package msrfs

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// Signal/control names this group provides, and the MSR offset each
// reads/writes (8 bytes, little-endian, at the given byte offset).
const (
	SignalTimestampCounter = "MSR_TIMESTAMP_COUNTER" // domain CPU, read-only
	SignalEnergyPackageUJ  = "MSR_ENERGY_PACKAGE_UJ"  // domain Package, read-only
	ControlPerfCtlRatio    = "MSR_PERF_CTL_RATIO"     // domain CPU, read+write
)

const (
	offsetTimestampCounter = 0x10
	offsetEnergyPackage    = 0x611
	offsetPerfCtl          = 0x199
)

var signalDomains = map[string]topo.Domain{
	SignalTimestampCounter: topo.DomainCPU,
	SignalEnergyPackageUJ:  topo.DomainPackage,
	ControlPerfCtlRatio:    topo.DomainCPU,
}

var controlDomains = map[string]topo.Domain{
	ControlPerfCtlRatio: topo.DomainCPU,
}

var signalOffsets = map[string]int64{
	SignalTimestampCounter: offsetTimestampCounter,
	SignalEnergyPackageUJ:  offsetEnergyPackage,
	ControlPerfCtlRatio:    offsetPerfCtl,
}

type pushedEntry struct {
	name      string
	domainIdx int
}

// DevicePathFunc resolves the msr device file for a given CPU index;
// overridable for tests so they don't require a real /dev/cpu/*/msr.
type DevicePathFunc func(cpuIdx int) string

func defaultDevicePath(cpuIdx int) string { return fmt.Sprintf("/dev/cpu/%d/msr", cpuIdx) }

// Group is the msrfs IOGroup.
type Group struct {
	devicePath DevicePathFunc

	pushedSignals  []pushedEntry
	pushedControls []pushedEntry
	sampled        map[int]float64
	staged         map[int]float64
}

// New creates a Group using the real /dev/cpu/*/msr device path.
func New() *Group { return NewWithDevicePath(defaultDevicePath) }

// NewWithDevicePath creates a Group resolving MSR device files through
// devicePath, for tests that substitute a regular file for the device node.
func NewWithDevicePath(devicePath DevicePathFunc) *Group {
	return &Group{
		devicePath: devicePath,
		sampled:    make(map[int]float64),
		staged:     make(map[int]float64),
	}
}

func (g *Group) Name() string { return "msrfs" }

func (g *Group) SignalNames() []string {
	names := make([]string, 0, len(signalDomains))
	for n := range signalDomains {
		names = append(names, n)
	}
	return names
}

func (g *Group) ControlNames() []string {
	names := make([]string, 0, len(controlDomains))
	for n := range controlDomains {
		names = append(names, n)
	}
	return names
}

func (g *Group) SignalDomainType(name string) (topo.Domain, error) {
	d, ok := signalDomains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "msrfs: unknown signal %q", name)
	}
	return d, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	d, ok := controlDomains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "msrfs: unknown control %q", name)
	}
	return d, nil
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := signalDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "msrfs: unknown signal %q", name)
	}
	idx := len(g.pushedSignals)
	g.pushedSignals = append(g.pushedSignals, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := controlDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "msrfs: unknown control %q", name)
	}
	idx := len(g.pushedControls)
	g.pushedControls = append(g.pushedControls, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) ReadBatch() error {
	for i, e := range g.pushedSignals {
		v, err := g.ReadSignal(e.name, signalDomains[e.name], e.domainIdx)
		if err != nil {
			return err
		}
		g.sampled[i] = v
	}
	return nil
}

func (g *Group) Sample(handle int) (float64, error) {
	if handle < 0 || handle >= len(g.pushedSignals) {
		return math.NaN(), geopmerr.New(geopmerr.Invalid, "msrfs: bad signal handle %d", handle)
	}
	return g.sampled[handle], nil
}

func (g *Group) Adjust(handle int, value float64) error {
	if handle < 0 || handle >= len(g.pushedControls) {
		return geopmerr.New(geopmerr.Invalid, "msrfs: bad control handle %d", handle)
	}
	g.staged[handle] = value
	return nil
}

func (g *Group) WriteBatch() error {
	for i, e := range g.pushedControls {
		v, ok := g.staged[i]
		if !ok {
			continue
		}
		if err := g.WriteControl(e.name, controlDomains[e.name], e.domainIdx, v); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	offset, ok := signalOffsets[name]
	if !ok {
		return math.NaN(), geopmerr.New(geopmerr.NotSupported, "msrfs: unknown signal %q", name)
	}
	raw, err := g.readMSR(domainIdx, offset)
	if err != nil {
		return math.NaN(), err
	}
	switch name {
	case SignalEnergyPackageUJ:
		return float64(raw) * energyUnitMicrojoules, nil
	default:
		return float64(raw), nil
	}
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	offset, ok := signalOffsets[name]
	if !ok {
		return geopmerr.New(geopmerr.NotSupported, "msrfs: unknown control %q", name)
	}
	return g.writeMSR(domainIdx, offset, uint64(value))
}

// energyUnitMicrojoules matches the RAPL energy-status MSR's default
// 15.3 microjoule resolution (2^-16 J), a common real-hardware value.
const energyUnitMicrojoules = 1.0 / 65536.0 * 1e6

func (g *Group) AggFunction(name string) string {
	if name == SignalEnergyPackageUJ {
		return "sum"
	}
	return "average"
}
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int {
	if name == SignalTimestampCounter || name == SignalEnergyPackageUJ {
		return 0 // monotone counter
	}
	return 1
}

func (g *Group) readMSR(cpuIdx int, offset int64) (uint64, error) {
	path := g.devicePath(cpuIdx)
	f, err := os.Open(path)
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.NotSupported, err, "msrfs: open %s", path)
	}
	defer f.Close()

	var buf [8]byte
	if _, err := f.ReadAt(buf[:], offset); err != nil {
		return 0, geopmerr.Wrap(geopmerr.Platform, err, "msrfs: read offset 0x%x from %s", offset, path)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (g *Group) writeMSR(cpuIdx int, offset int64, value uint64) error {
	path := g.devicePath(cpuIdx)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return geopmerr.Wrap(geopmerr.NotSupported, err, "msrfs: open %s", path)
	}
	defer f.Close()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	if _, err := f.WriteAt(buf[:], offset); err != nil {
		return geopmerr.Wrap(geopmerr.Platform, err, "msrfs: write offset 0x%x to %s", offset, path)
	}
	return nil
}
