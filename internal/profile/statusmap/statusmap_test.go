package statusmap

import (
	"testing"

	"github.com/geopmd/core/internal/profile"
)

func TestNewEntriesStartUnmarked(t *testing.T) {
	m := New(4)
	if m.NumEntries() != 4 {
		t.Fatalf("NumEntries() = %d, want 4", m.NumEntries())
	}
	for i := 0; i < 4; i++ {
		s := m.Read(i)
		if s.Hash != profile.Unmarked || s.Heartbeat != 0 {
			t.Fatalf("entry %d = %+v, want unmarked zero value", i, s)
		}
	}
}

func TestUpdateOverwritesAndBumpsHeartbeat(t *testing.T) {
	m := New(2)
	h := profile.NewRegionHash("r", profile.HintCompute)
	m.Update(0, h, profile.HintCompute, 0.5)
	s := m.Read(0)
	if s.Hash != h || s.Hint != profile.HintCompute || s.Progress != 0.5 || s.Heartbeat != 1 {
		t.Fatalf("Read(0) = %+v, want hash=%v progress=0.5 heartbeat=1", s, h)
	}
	m.Update(0, h, profile.HintCompute, 0.75)
	if s := m.Read(0); s.Heartbeat != 2 || s.Progress != 0.75 {
		t.Fatalf("second Update: Read(0) = %+v, want heartbeat=2 progress=0.75", s)
	}
	if m.Read(1).Hash != profile.Unmarked {
		t.Fatal("updating index 0 must not disturb index 1")
	}
}

func TestStalledDetectsNoProgressSinceLastObservation(t *testing.T) {
	m := New(1)
	h := profile.NewRegionHash("r", profile.HintCompute)
	m.Update(0, h, profile.HintCompute, 0.1)
	last := m.Read(0).Heartbeat

	if !m.Stalled(0, last) {
		t.Fatal("Stalled should be true when no Update happened since the observed heartbeat")
	}
	m.Update(0, h, profile.HintCompute, 0.2)
	if m.Stalled(0, last) {
		t.Fatal("Stalled should be false once a new Update advances the heartbeat")
	}
}
