// Package preflight checks whether the host actually exposes what a
// configured agent needs before the controller loop starts, adapted
// from the teacher's distro/package-manager detection
// (internal/installer/installer.go): instead of detecting a Linux
// distribution in order to install BCC packages, it detects MSR
// driver availability, cpufreq sysfs presence, and BTF/CO-RE support,
// producing a Report geopmd's startup path uses to choose its exit
// code (spec.md §6's "nonzero on startup failure" rule).
package preflight

import (
	"fmt"
	"os"

	"github.com/geopmd/core/internal/ebpf"
)

// Check is one named preflight check's outcome.
type Check struct {
	Name   string
	Ready  bool
	Detail string
}

// Report is the full set of preflight checks run before the
// controller loop starts.
type Report struct {
	Checks []Check
}

// Ready reports whether every check passed — the signal cmd/geopmd
// uses to decide between exit code 0 and a nonzero startup failure.
func (r Report) Ready() bool {
	for _, c := range r.Checks {
		if !c.Ready {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass, in report order.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Ready {
			out = append(out, c)
		}
	}
	return out
}

// Run executes every preflight check against the live host and
// returns the aggregate Report.
func Run() Report {
	return Report{
		Checks: []Check{
			checkMSRDevice(),
			checkMSRSafeModule(),
			checkCPUFreqSysfs(),
			checkBTF(),
		},
	}
}

func checkMSRDevice() Check {
	const path = "/dev/cpu/0/msr"
	if _, err := os.Stat(path); err != nil {
		return Check{Name: "msr_device", Ready: false,
			Detail: fmt.Sprintf("%s not present: %v (load the msr kernel module, or run msrfs under msr-safe)", path, err)}
	}
	return Check{Name: "msr_device", Ready: true, Detail: path}
}

func checkMSRSafeModule() Check {
	const path = "/sys/module/msr_safe"
	if _, err := os.Stat(path); err != nil {
		return Check{Name: "msr_safe_module", Ready: false,
			Detail: "msr-safe module not loaded; falling back to raw /dev/cpu/*/msr requires root"}
	}
	return Check{Name: "msr_safe_module", Ready: true, Detail: path}
}

func checkCPUFreqSysfs() Check {
	const path = "/sys/devices/system/cpu/cpu0/cpufreq"
	if _, err := os.Stat(path); err != nil {
		return Check{Name: "cpufreq_sysfs", Ready: false,
			Detail: fmt.Sprintf("%s not present: %v (frequency control signals will be unavailable)", path, err)}
	}
	return Check{Name: "cpufreq_sysfs", Ready: true, Detail: path}
}

func checkBTF() Check {
	info := ebpf.DetectBTF()
	if !info.Available || !info.CORESupport {
		return Check{Name: "btf_core", Ready: false,
			Detail: fmt.Sprintf("kernel %s: available=%v core_support=%v (native eBPF signals degrade to procfs/sysfs)",
				info.KernelVersion, info.Available, info.CORESupport)}
	}
	return Check{Name: "btf_core", Ready: true, Detail: info.VmlinuxPath}
}
