package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	constiogroup "github.com/geopmd/core/internal/iogroup/const"
	"github.com/geopmd/core/internal/agent/monitor"
	"github.com/geopmd/core/internal/platformio"
	"github.com/geopmd/core/internal/topo"
	"github.com/geopmd/core/internal/tree"
)

type rowCollector struct {
	mu   sync.Mutex
	rows [][]float64
}

func (r *rowCollector) WriteRow(values []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := append([]float64(nil), values...)
	r.rows = append(r.rows, cp)
	return nil
}

func (r *rowCollector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type reportCollector struct {
	mu        sync.Mutex
	finished  bool
	truncated bool
	header    map[string]string
}

func (r *reportCollector) Finish(header, host map[string]string, region map[uint64]map[string]string, truncated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
	r.truncated = truncated
	r.header = header
	return nil
}

func newLeafMonitor(t *testing.T) *monitor.Monitor {
	t.Helper()
	pio := platformio.New()
	g := constiogroup.New("const", map[string]topo.Domain{"cpu_energy": topo.DomainBoard})
	pio.Register(g)
	g.Set("cpu_energy", 0, 42.0)

	m := monitor.New()
	m.Configure(pio, []monitor.SignalSpec{{Name: "cpu_energy", Domain: topo.DomainBoard, DomainIdx: 0}})
	return m
}

func TestControllerTicksAndWritesTrace(t *testing.T) {
	m := newLeafMonitor(t)
	trace := &rowCollector{}
	report := &reportCollector{}

	c := New(m, nil, true, true, trace, report)
	m.SetPeriod(0.001)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if c.TickCount() == 0 {
		t.Fatal("expected at least one tick")
	}
	if trace.count() == 0 {
		t.Fatal("expected trace rows to be written")
	}
	if !report.finished {
		t.Fatal("expected report.Finish to be called on shutdown")
	}
	if report.truncated {
		t.Error("expected non-truncated finish on ordinary context deadline, not a signal")
	}
}

func TestControllerPropagatesPolicyThroughTree(t *testing.T) {
	rootLevel := tree.NewLevel(1, nil, nil)
	childLevel := tree.NewLevel(0, rootLevel.ChildDown[0], rootLevel.ChildUp[0])

	rootAgent := monitor.New()
	if err := rootAgent.Init(0, 1, true); err != nil {
		t.Fatal(err)
	}
	rootCtl := New(rootAgent, rootLevel, true, false, nil, nil)
	rootCtl.SetExternalPolicy([]float64{9, 9})

	policy := rootCtl.downPhase()
	if policy == nil || policy[0] != 9 {
		t.Fatalf("downPhase() = %v, want external policy [9 9]", policy)
	}
	if err := rootAgent.ValidatePolicy(policy); err != nil {
		t.Fatal(err)
	}
	children, err := rootAgent.SplitPolicy(policy)
	if err != nil {
		t.Fatal(err)
	}
	if err := rootLevel.SendPolicyDown(children); err != nil {
		t.Fatal(err)
	}

	childAgent := newLeafMonitor(t)
	childCtl := New(childAgent, childLevel, false, true, nil, nil)
	got := childCtl.downPhase()
	if got == nil || got[0] != 9 || got[1] != 9 {
		t.Fatalf("child downPhase() = %v, want [9 9]", got)
	}
}
