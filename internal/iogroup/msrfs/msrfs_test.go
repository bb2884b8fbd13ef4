package msrfs

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/geopmd/core/internal/topo"
)

func fakeDevice(t *testing.T, value uint64, offset int64) DevicePathFunc {
	t.Helper()
	path := filepath.Join(t.TempDir(), "msr0")
	buf := make([]byte, offset+8)
	binary.LittleEndian.PutUint64(buf[offset:offset+8], value)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return func(cpuIdx int) string { return path }
}

func TestReadSignalTimestampCounter(t *testing.T) {
	devicePath := fakeDevice(t, 123456789, offsetTimestampCounter)
	g := NewWithDevicePath(devicePath)

	handle, err := g.PushSignal(SignalTimestampCounter, topo.DomainCPU, 0)
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
	if v != 123456789 {
		t.Fatalf("Sample() = %v, want 123456789", v)
	}
}

func TestReadSignalEnergyPackageScalesToMicrojoules(t *testing.T) {
	devicePath := fakeDevice(t, 65536, offsetEnergyPackage) // 65536 raw units -> 1e6 microjoules
	g := NewWithDevicePath(devicePath)

	handle, err := g.PushSignal(SignalEnergyPackageUJ, topo.DomainPackage, 0)
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
	if v != 1e6 {
		t.Fatalf("Sample() = %v, want 1e6 microjoules", v)
	}
}

func TestAdjustThenWriteBatchWritesMSR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msr0")
	buf := make([]byte, offsetPerfCtl+8)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	g := NewWithDevicePath(func(cpuIdx int) string { return path })

	handle, err := g.PushControl(ControlPerfCtlRatio, topo.DomainCPU, 0)
	if err != nil {
		t.Fatalf("PushControl() error: %v", err)
	}
	if err := g.Adjust(handle, 28); err != nil {
		t.Fatalf("Adjust() error: %v", err)
	}
	if err := g.WriteBatch(); err != nil {
		t.Fatalf("WriteBatch() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	got := binary.LittleEndian.Uint64(data[offsetPerfCtl : offsetPerfCtl+8])
	if got != 28 {
		t.Fatalf("written MSR value = %d, want 28", got)
	}
}

func TestPushSignalRejectsUnknownName(t *testing.T) {
	g := New()
	if _, err := g.PushSignal("NOT_AN_MSR", topo.DomainCPU, 0); err == nil {
		t.Fatal("expected an error for an unregistered signal name")
	}
}

func TestPushControlRejectsSignalOnlyName(t *testing.T) {
	g := New()
	if _, err := g.PushControl(SignalTimestampCounter, topo.DomainCPU, 0); err == nil {
		t.Fatal("expected an error pushing a control for a signal-only name")
	}
}

func TestSampleRejectsUnpushedHandle(t *testing.T) {
	g := New()
	if _, err := g.Sample(0); err == nil {
		t.Fatal("expected an error sampling a handle that was never pushed")
	}
}
