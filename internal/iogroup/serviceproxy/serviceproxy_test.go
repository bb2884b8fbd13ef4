package serviceproxy

import (
	"testing"

	"github.com/geopmd/core/internal/topo"
)

func TestPushSignalRejectsUnknownName(t *testing.T) {
	g := New("geopm-service-helper")
	if _, err := g.PushSignal("NOT_A_SIGNAL", topo.DomainPackage, 0); err == nil {
		t.Fatal("expected an error for an unregistered signal name")
	}
}

func TestSignalDomainTypeMatchesRegisteredSignals(t *testing.T) {
	g := New("geopm-service-helper")
	d, err := g.SignalDomainType(SignalPackagePowerLimitUW)
	if err != nil {
		t.Fatalf("SignalDomainType() error: %v", err)
	}
	if d != topo.DomainPackage {
		t.Fatalf("SignalDomainType() = %v, want DomainPackage", d)
	}
}

func TestReadBatchFailsWhenHelperCannotBeResolved(t *testing.T) {
	g := New("nonexistent-geopm-helper-xyz")
	if _, err := g.PushSignal(SignalCPUFrequencyHz, topo.DomainCPU, 0); err != nil {
		t.Fatalf("PushSignal() error: %v", err)
	}
	if err := g.ReadBatch(); err == nil {
		t.Fatal("expected ReadBatch() to fail when the helper binary cannot be resolved")
	}
}

func TestWriteControlFailsWhenHelperCannotBeResolved(t *testing.T) {
	g := New("nonexistent-geopm-helper-xyz")
	if err := g.WriteControl(SignalPackagePowerLimitUW, topo.DomainPackage, 0, 100); err == nil {
		t.Fatal("expected WriteControl() to fail when the helper binary cannot be resolved")
	}
}

func TestSampleRejectsUnpushedHandle(t *testing.T) {
	g := New("geopm-service-helper")
	if _, err := g.Sample(0); err == nil {
		t.Fatal("expected an error sampling a handle that was never pushed")
	}
}
