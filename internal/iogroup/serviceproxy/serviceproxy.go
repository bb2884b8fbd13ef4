// Package serviceproxy implements the serviceproxy IOGroup: signal and
// control access brokered through a security-checked privileged helper
// binary, for registers this process cannot reach directly (no
// /dev/cpu/*/msr permission, no msr-safe module). Adapted wholesale
// from internal/executor/{executor,security}.go: the same binary
// allow-list/ownership verification and SIGINT-then-SIGKILL shutdown
// that gated BCC tool invocation now gate a single-shot privileged
// register read or write.
package serviceproxy

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/geopmd/core/internal/executor"
	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/topo"
)

// Signal/control names this group provides. Both map to the same
// helper-brokered register; the name tells the helper which one.
const (
	SignalPackagePowerLimitUW = "SERVICE_PACKAGE_POWER_LIMIT_UW" // domain Package, signal+control
	SignalCPUFrequencyHz      = "SERVICE_CPU_FREQUENCY_HZ"       // domain CPU, signal+control
)

var signalDomains = map[string]topo.Domain{
	SignalPackagePowerLimitUW: topo.DomainPackage,
	SignalCPUFrequencyHz:      topo.DomainCPU,
}

const helperCallTimeout = 2 * time.Second

type pushedEntry struct {
	name      string
	domainIdx int
}

// Group is the serviceproxy IOGroup.
type Group struct {
	security   *executor.SecurityChecker
	helperName string // binary name resolved via the security checker's allowed paths

	pushedSignals  []pushedEntry
	pushedControls []pushedEntry
	sampled        map[int]float64
	staged         map[int]float64
}

// New creates a Group that invokes helperName (resolved through the
// same allowed-path/ownership checks as internal/executor) for every
// register access.
func New(helperName string) *Group {
	return &Group{
		security:   executor.NewSecurityChecker(),
		helperName: helperName,
		sampled:    make(map[int]float64),
		staged:     make(map[int]float64),
	}
}

func (g *Group) Name() string { return "serviceproxy" }

func (g *Group) SignalNames() []string {
	names := make([]string, 0, len(signalDomains))
	for n := range signalDomains {
		names = append(names, n)
	}
	return names
}

func (g *Group) ControlNames() []string { return g.SignalNames() }

func (g *Group) SignalDomainType(name string) (topo.Domain, error) {
	d, ok := signalDomains[name]
	if !ok {
		return topo.DomainInvalid, geopmerr.New(geopmerr.NotSupported, "serviceproxy: unknown signal %q", name)
	}
	return d, nil
}

func (g *Group) ControlDomainType(name string) (topo.Domain, error) {
	return g.SignalDomainType(name)
}

func (g *Group) PushSignal(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := signalDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "serviceproxy: unknown signal %q", name)
	}
	idx := len(g.pushedSignals)
	g.pushedSignals = append(g.pushedSignals, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

func (g *Group) PushControl(name string, domain topo.Domain, domainIdx int) (int, error) {
	if _, ok := signalDomains[name]; !ok {
		return 0, geopmerr.New(geopmerr.NotSupported, "serviceproxy: unknown control %q", name)
	}
	idx := len(g.pushedControls)
	g.pushedControls = append(g.pushedControls, pushedEntry{name: name, domainIdx: domainIdx})
	return idx, nil
}

// ReadBatch invokes the helper once per pushed signal; real deployments
// would batch these into a single helper call, but the security/launch
// overhead of doing so is out of scope here.
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
		return 0, geopmerr.New(geopmerr.Invalid, "serviceproxy: bad signal handle %d", handle)
	}
	return g.sampled[handle], nil
}

func (g *Group) Adjust(handle int, value float64) error {
	if handle < 0 || handle >= len(g.pushedControls) {
		return geopmerr.New(geopmerr.Invalid, "serviceproxy: bad control handle %d", handle)
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
		if err := g.WriteControl(e.name, signalDomains[e.name], e.domainIdx, v); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) ReadSignal(name string, domain topo.Domain, domainIdx int) (float64, error) {
	out, err := g.callHelper("read", name, domainIdx, 0)
	if err != nil {
		return 0, err
	}
	return parseHelperValue(out)
}

func (g *Group) WriteControl(name string, domain topo.Domain, domainIdx int, value float64) error {
	_, err := g.callHelper("write", name, domainIdx, value)
	return err
}

func (g *Group) AggFunction(name string) string    { return "average" }
func (g *Group) FormatFunction(name string) string { return "float" }
func (g *Group) SignalBehavior(name string) int    { return 1 }

// callHelper resolves and verifies the helper binary exactly as
// internal/executor.BCCExecutor.Run does, then runs it with a
// SIGINT-then-SIGKILL shutdown path bounded by helperCallTimeout.
func (g *Group) callHelper(verb, signalName string, domainIdx int, value float64) (string, error) {
	binPath, err := g.security.ResolveBinary(g.helperName)
	if err != nil {
		return "", geopmerr.Wrap(geopmerr.NotSupported, err, "serviceproxy: resolve helper %q", g.helperName)
	}
	if err := g.security.VerifyBinary(binPath); err != nil {
		return "", geopmerr.Wrap(geopmerr.NotSupported, err, "serviceproxy: verify helper %q", binPath)
	}

	args := []string{verb, signalName, strconv.Itoa(domainIdx)}
	if verb == "write" {
		args = append(args, strconv.FormatFloat(value, 'g', -1, 64))
	}

	ctx, cancel := context.WithTimeout(context.Background(), helperCallTimeout)
	defer cancel()

	cmd := exec.Command(binPath, args...)
	cmd.Env = g.security.SanitizeEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &executor.LimitedWriter{W: &stdout, N: 1 << 20}
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", geopmerr.Wrap(geopmerr.Platform, err, "serviceproxy: start helper %q", g.helperName)
	}

	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- cmd.Wait()
		close(exited)
	}()

	pgid := cmd.Process.Pid
	go func() {
		select {
		case <-ctx.Done():
			if err := syscall.Kill(-pgid, syscall.SIGINT); err != nil {
				_ = cmd.Process.Signal(syscall.SIGINT)
			}
			select {
			case <-exited:
			case <-time.After(gracefulShutdownTimeout):
				_ = syscall.Kill(-pgid, syscall.SIGKILL)
			}
		case <-exited:
		}
	}()

	waitErr := <-done
	if ctx.Err() != nil {
		return "", geopmerr.New(geopmerr.Platform, "serviceproxy: helper %q timed out after %s", g.helperName, helperCallTimeout)
	}
	if waitErr != nil {
		return "", geopmerr.Wrap(geopmerr.Platform, waitErr, "serviceproxy: helper %q failed: %s", g.helperName, stderr.String())
	}
	return stdout.String(), nil
}

const gracefulShutdownTimeout = 3 * time.Second

func parseHelperValue(out string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, geopmerr.Wrap(geopmerr.Platform, err, "serviceproxy: parse helper output %q", out)
	}
	return v, nil
}
