package main

import (
	"runtime"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/agent/freqbalancer"
	"github.com/geopmd/core/internal/agent/monitor"
	"github.com/geopmd/core/internal/agent/powergov"
	"github.com/geopmd/core/internal/iogroup/accelerator"
	"github.com/geopmd/core/internal/iogroup/derived"
	coreebpf "github.com/geopmd/core/internal/iogroup/ebpf"
	"github.com/geopmd/core/internal/iogroup/msrfs"
	"github.com/geopmd/core/internal/iogroup/procfs"
	"github.com/geopmd/core/internal/iogroup/serviceproxy"
	"github.com/geopmd/core/internal/iogroup/sysfs"
	"github.com/geopmd/core/internal/platformio"
	"github.com/geopmd/core/internal/topo"
)

// buildPlatformIO registers every compiled-in IOGroup provider, per
// spec.md §9's design note that the provider set is compiled in rather
// than dynamically loaded. Later registrations win name collisions
// (platformio.PlatformIO.Register), so providers able to serve a
// signal more cheaply should register last. The groups registered
// here advertise disjoint signal and control names (msrfs uses MSR_*
// names, serviceproxy SERVICE_* names), so none overrides another.
func buildPlatformIO() *platformio.PlatformIO {
	pio := platformio.New()
	pio.Register(procfs.New("/proc"))
	pio.Register(sysfs.New("/sys", "/proc"))
	pio.Register(accelerator.New())

	netGroup := coreebpf.New()
	pio.Register(netGroup)

	pio.Register(serviceproxy.New("geopm-service-helper"))
	pio.Register(msrfs.New())

	pio.Register(derived.New())
	return pio
}

// configureAgent supplies the platform bounds every compiled-in Agent
// needs before Controller.Run calls Init. monitor needs an explicit
// signal list; power_governor and frequency_balancer need numeric
// platform bounds that would, on real hardware, come from
// platformio/cpuid's resolved Family.
func configureAgent(a agent.Agent, pio *platformio.PlatformIO) {
	switch v := a.(type) {
	case *monitor.Monitor:
		v.Configure(pio, defaultMonitorSignals())
	case *powergov.Agent:
		v.Configure(50, 300, 0.015) // watts min/max, RAPL averaging window seconds
	case *freqbalancer.Agent:
		numCore := runtime.NumCPU()
		v.Configure(numCore, 8e8, 5e9, 1e8, 1.2e9) // Hz min/max/step, low-priority target
	}
}

// defaultMonitorSignals is the signal set the monitor agent samples
// and reports when no profile-specific list is configured.
func defaultMonitorSignals() []monitor.SignalSpec {
	return []monitor.SignalSpec{
		{Name: procfs.SignalCPUUtilizationPct, Domain: topo.DomainCPU, DomainIdx: 0},
		{Name: procfs.SignalLoadAverage1Min, Domain: topo.DomainBoard, DomainIdx: 0},
		{Name: procfs.SignalMemoryUsedPct, Domain: topo.DomainBoard, DomainIdx: 0},
		{Name: sysfs.SignalCPUFreqMaxHz, Domain: topo.DomainCPU, DomainIdx: 0},
	}
}
