package procfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/geopmd/core/internal/topo"
)

func writeFixture(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0600); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func TestFirstReadBatchHasNoPriorSample(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "stat", "cpu  100 0 50 800 10 0 0 0\ncpu0 100 0 50 800 10 0 0 0\nctxt 1000\n")
	writeFixture(t, root, "loadavg", "0.50 0.40 0.30 1/200 1234\n")
	writeFixture(t, root, "meminfo", "MemTotal: 1000000 kB\nMemAvailable: 400000 kB\n")

	g := New(root)
	if err := g.ReadBatch(); err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}

	handle, err := g.PushSignal(SignalCPUUtilizationPct, topo.DomainCPU, 0)
	if err != nil {
		t.Fatalf("PushSignal() error: %v", err)
	}
	v, err := g.Sample(handle)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if v != 0 {
		t.Fatalf("first-tick utilization = %v, want 0 (no prior sample to delta against)", v)
	}
}

func TestSecondReadBatchComputesUtilizationDelta(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "stat", "cpu  100 0 50 800 10 0 0 0\ncpu0 100 0 50 800 10 0 0 0\nctxt 1000\n")
	writeFixture(t, root, "loadavg", "0.50 0.40 0.30 1/200 1234\n")
	writeFixture(t, root, "meminfo", "MemTotal: 1000000 kB\nMemAvailable: 400000 kB\n")

	g := New(root)
	if err := g.ReadBatch(); err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}
	handle, _ := g.PushSignal(SignalCPUUtilizationPct, topo.DomainCPU, 0)

	// Second sample: +100 user ticks, +0 idle ticks over a +100 total delta -> 100% busy.
	writeFixture(t, root, "stat", "cpu  200 0 50 800 10 0 0 0\ncpu0 200 0 50 800 10 0 0 0\nctxt 1500\n")
	if err := g.ReadBatch(); err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}
	v, err := g.Sample(handle)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if v != 100 {
		t.Fatalf("utilization = %v, want 100", v)
	}

	ctxHandle, _ := g.PushSignal(SignalContextSwitchesHz, topo.DomainBoard, 0)
	ctxV, err := g.Sample(ctxHandle)
	if err != nil {
		t.Fatalf("Sample(ctx) error: %v", err)
	}
	if ctxV != 500 {
		t.Fatalf("context switch rate = %v, want 500", ctxV)
	}
}

func TestMemoryUsedPct(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "stat", "cpu  0 0 0 0 0 0 0 0\nctxt 0\n")
	writeFixture(t, root, "loadavg", "0 0 0 1/1 1\n")
	writeFixture(t, root, "meminfo", "MemTotal: 1000000 kB\nMemAvailable: 250000 kB\n")

	g := New(root)
	if err := g.ReadBatch(); err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}
	handle, _ := g.PushSignal(SignalMemoryUsedPct, topo.DomainBoard, 0)
	v, err := g.Sample(handle)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if v != 75 {
		t.Fatalf("MemoryUsedPct = %v, want 75", v)
	}
}

func TestPushSignalRejectsUnknownName(t *testing.T) {
	g := New(t.TempDir())
	if _, err := g.PushSignal("NOT_A_SIGNAL", topo.DomainBoard, 0); err == nil {
		t.Fatal("expected an error for an unregistered signal name")
	}
}
