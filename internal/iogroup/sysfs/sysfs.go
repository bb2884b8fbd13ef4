// Package sysfs implements the sysfs IOGroup: cpufreq scaling
// signals/controls, RAPL package power limits, and PSI pressure,
// grounded on the teacher's sysfs-walking collectors
// (internal/collector/cpu.go's parseCPUPSI, internal/collector/
// {memory,disk}.go's sysctl/sysfs readers).
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// Signal/control names this group provides.
const (
	SignalCPUFreqMinHz  = "CPUFREQ_MIN_HZ" // domain CPU, signal+control
	SignalCPUFreqMaxHz  = "CPUFREQ_MAX_HZ" // domain CPU, signal+control
	SignalPSICPUSome10  = "PSI_CPU_SOME_AVG10" // domain Board, signal only
	SignalRAPLPowerLim  = "RAPL_PACKAGE_POWER_LIMIT_UW" // domain Package, signal+control
)

var signalDomains = map[string]topo.Domain{
	SignalCPUFreqMinHz: topo.DomainCPU,
	SignalCPUFreqMaxHz: topo.DomainCPU,
	SignalPSICPUSome10: topo.DomainBoard,
	SignalRAPLPowerLim: topo.DomainPackage,
}

var controlDomains = map[string]topo.Domain{
	SignalCPUFreqMinHz: topo.DomainCPU,
	SignalCPUFreqMaxHz: topo.DomainCPU,
	SignalRAPLPowerLim: topo.DomainPackage,
}

type pushedEntry struct {
	name      string
	domainIdx int
}

// Group is the sysfs IOGroup.
type Group struct {
	sysRoot  string
	procRoot string

	pushedSignals  []pushedEntry
	pushedControls []pushedEntry
	sampled        map[int]float64 // pushedSignals index -> value from last ReadBatch
	staged         map[int]float64 // pushedControls index -> value to write
}

// New creates a Group rooted at sysRoot (normally "/sys") and procRoot
// (normally "/proc", for PSI).
func New(sysRoot, procRoot string) *Group {
	return &Group{
		sysRoot:  sysRoot,
		procRoot: procRoot,
		sampled:  make(map[int]float64),
		staged:   make(map[int]float64),
	}
}

func (g *Group) Name() string { return "sysfs" }

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
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "sysfs: unknown signal %q", name)
	}
	return d, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	d, ok := controlDomains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "sysfs: unknown control %q", name)
	}
	return d, nil
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := signalDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "sysfs: unknown signal %q", name)
	}
	idx := len(g.pushedSignals)
	g.pushedSignals = append(g.pushedSignals, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := controlDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "sysfs: unknown control %q", name)
	}
	idx := len(g.pushedControls)
	g.pushedControls = append(g.pushedControls, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

// ReadBatch reads the current value of every pushed signal.
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
		return 0, geopmerr.New(geopmerr.Invalid, "sysfs: bad signal handle %d", handle)
	}
	return g.sampled[handle], nil
}

func (g *Group) Adjust(handle int, value float64) error {
	if handle < 0 || handle >= len(g.pushedControls) {
		return geopmerr.New(geopmerr.Invalid, "sysfs: bad control handle %d", handle)
	}
	g.staged[handle] = value
	return nil
}

// WriteBatch writes every staged control value.
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
	switch name {
	case SignalCPUFreqMinHz:
		return g.readCPUFreqFile(domainIdx, "scaling_min_freq")
	case SignalCPUFreqMaxHz:
		return g.readCPUFreqFile(domainIdx, "scaling_max_freq")
	case SignalRAPLPowerLim:
		return g.readRAPLPowerLimit(domainIdx)
	case SignalPSICPUSome10:
		return g.readPSICPUSome10()
	default:
		return 0, geopmerr.New(geopmerr.NotSupported, "sysfs: unknown signal %q", name)
	}
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	switch name {
	case SignalCPUFreqMinHz:
		return g.writeCPUFreqFile(domainIdx, "scaling_min_freq", value)
	case SignalCPUFreqMaxHz:
		return g.writeCPUFreqFile(domainIdx, "scaling_max_freq", value)
	case SignalRAPLPowerLim:
		return g.writeRAPLPowerLimit(domainIdx, value)
	default:
		return geopmerr.New(geopmerr.NotSupported, "sysfs: unknown control %q", name)
	}
}

func (g *Group) AggFunction(name string) string {
	if name == SignalRAPLPowerLim {
		return "sum"
	}
	return "average"
}
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int    { return 1 }

// cpufreq reports frequency in kHz; signals/controls here are in Hz
// (GEOPM's canonical unit), so every read/write scales by 1000.

func (g *Group) cpuFreqPath(cpuIdx int, file string) string {
	return filepath.Join(g.sysRoot, "devices", "system", "cpu", fmt.Sprintf("cpu%d", cpuIdx), "cpufreq", file)
}

func (g *Group) readCPUFreqFile(cpuIdx int, file string) (float64, error) {
	data, err := os.ReadFile(g.cpuFreqPath(cpuIdx, file))
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.NotSupported, err, "sysfs: read %s", g.cpuFreqPath(cpuIdx, file))
	}
	khz, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.Platform, err, "sysfs: parse %s", g.cpuFreqPath(cpuIdx, file))
	}
	return khz * 1000, nil
}

func (g *Group) writeCPUFreqFile(cpuIdx int, file string, hz float64) error {
	khz := int64(hz / 1000)
	path := g.cpuFreqPath(cpuIdx, file)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(khz, 10)), 0644); err != nil {
		return geopmerr.Wrap(geopmerr.Platform, err, "sysfs: write %s", path)
	}
	return nil
}

func (g *Group) raplPath(packageIdx int) string {
	return filepath.Join(g.sysRoot, "class", "powercap", fmt.Sprintf("intel-rapl:%d", packageIdx), "constraint_0_power_limit_uw")
}

func (g *Group) readRAPLPowerLimit(packageIdx int) (float64, error) {
	path := g.raplPath(packageIdx)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.NotSupported, err, "sysfs: read %s", path)
	}
	uw, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.Platform, err, "sysfs: parse %s", path)
	}
	return uw, nil
}

func (g *Group) writeRAPLPowerLimit(packageIdx int, microwatts float64) error {
	path := g.raplPath(packageIdx)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(int64(microwatts), 10)), 0644); err != nil {
		return geopmerr.Wrap(geopmerr.Platform, err, "sysfs: write %s", path)
	}
	return nil
}

func (g *Group) readPSICPUSome10() (float64, error) {
	path := filepath.Join(g.procRoot, "pressure", "cpu")
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.NotSupported, err, "sysfs: read %s", path)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "some" {
			continue
		}
		for _, field := range fields[1:] {
			parts := strings.SplitN(field, "=", 2)
			if len(parts) == 2 && parts[0] == "avg10" {
				v, _ := strconv.ParseFloat(parts[1], 64)
				return v, nil
			}
		}
	}
	return 0, geopmerr.New(geopmerr.Platform, "sysfs: no 'some avg10' field in %s", path)
}
