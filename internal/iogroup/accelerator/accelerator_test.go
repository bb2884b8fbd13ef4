package accelerator

import (
	"testing"

	"github.com/geopmd/core/internal/topo"
)

func TestSetThenSampleRoundTrips(t *testing.T) {
	g := New()
	g.Set("ACCELERATOR_UTILIZATION_PCT", 0, 42.5)

	handle, err := g.PushSignal("ACCELERATOR_UTILIZATION_PCT", topo.DomainBoardAccelerator, 0)
	if err != nil {
		t.Fatalf("PushSignal() error: %v", err)
	}
	if err := g.ReadBatch(); err != nil {
		t.Fatalf("ReadBatch() error: %v", err)
	}
	v, err := g.Sample(handle)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if v != 42.5 {
		t.Fatalf("Sample() = %v, want 42.5", v)
	}
}

func TestUnknownSignalIsNotSupported(t *testing.T) {
	g := New()
	if _, err := g.PushSignal("NOT_A_SIGNAL", topo.DomainBoard, 0); err == nil {
		t.Fatal("expected an error for an unregistered signal name")
	}
}

func TestSignalDomainTypeMatchesSignalSet(t *testing.T) {
	g := New()
	d, err := g.SignalDomainType("ACCELERATOR_MEMORY_USED_MIB")
	if err != nil {
		t.Fatalf("SignalDomainType() error: %v", err)
	}
	if d != topo.DomainAcceleratorChip {
		t.Fatalf("SignalDomainType() = %v, want DomainAcceleratorChip", d)
	}
}
