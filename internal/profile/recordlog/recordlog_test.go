package recordlog

import (
	"testing"

	"github.com/geopmd/core/internal/profile"
)

func TestEnterExitWithinCapacityProducesTwoRecords(t *testing.T) {
	l := New(16)
	h := profile.NewRegionHash("r", profile.HintCompute)
	l.Enter(h, 1.0)
	l.Exit(h, 2.0)

	records, summaries := l.Drain()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if len(summaries) != 0 {
		t.Fatalf("len(summaries) = %d, want 0 (no overflow occurred)", len(summaries))
	}
	if records[0].Event != profile.EventEnter || records[1].Event != profile.EventExit {
		t.Fatalf("records = %+v, want [enter exit]", records)
	}
}

func TestDrainClearsRing(t *testing.T) {
	l := New(16)
	h := profile.NewRegionHash("r", profile.HintCompute)
	l.Enter(h, 1.0)
	l.Exit(h, 2.0)
	l.Drain()
	records, summaries := l.Drain()
	if len(records) != 0 || len(summaries) != 0 {
		t.Fatalf("second Drain() = %v, %v; want both empty", records, summaries)
	}
}

// TestHundredThousandShortRegionsOverflowIntoSummary realizes the
// record log overflow scenario: a ring far smaller than the number of
// enter/exit pairs submitted must cap its full-record output at
// capacity-1 and merge everything else into exactly one short-region
// summary whose NumComplete equals the number of pairs that
// overflowed.
func TestHundredThousandShortRegionsOverflowIntoSummary(t *testing.T) {
	const ringCapacity = 8
	const numPairs = 100000

	l := New(ringCapacity)
	h := profile.NewRegionHash("tight_loop", profile.HintCompute)

	for i := 0; i < numPairs; i++ {
		t0 := float64(i) * 2.0
		l.Enter(h, t0)
		l.Exit(h, t0+1.0)
	}

	records, summaries := l.Drain()
	if len(records) > ringCapacity-1 {
		t.Fatalf("len(records) = %d, want at most capacity-1 = %d", len(records), ringCapacity-1)
	}
	if !l.Overflowed() {
		t.Fatal("expected Overflowed() true after submitting far more pairs than capacity")
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want exactly 1 merged short-region summary", len(summaries))
	}
	s := summaries[0]
	if s.Hash != h {
		t.Errorf("summary hash = %v, want %v", s.Hash, h)
	}
	// A small number of pairs land as full records before the ring
	// fills; the remainder merge into the summary. The total observed
	// across both channels must account for every submitted pair.
	fullPairs := len(records) / 2
	if int(s.NumComplete)+fullPairs != numPairs {
		t.Fatalf("full-record pairs (%d) + summary.NumComplete (%d) = %d, want %d",
			fullPairs, s.NumComplete, fullPairs+int(s.NumComplete), numPairs)
	}
}

func TestEpochRecordNeverMergedIntoSummary(t *testing.T) {
	l := New(2) // capacity 2 -> usable limit 1
	h := profile.NewRegionHash("r", profile.HintCompute)
	l.Enter(h, 0) // left open; Enter alone never writes to the ring
	l.Epoch(h, 1) // must still land as a real record
	records, _ := l.Drain()
	if len(records) != 1 || records[0].Event != profile.EventEpoch {
		t.Fatalf("records = %+v, want exactly one epoch record", records)
	}
}

func TestCapacityFloorIsTwo(t *testing.T) {
	l := New(0)
	if l.Capacity() != 2 {
		t.Fatalf("Capacity() = %d, want floor of 2", l.Capacity())
	}
}

// TestNewSharedRoundTripsThroughTheSameFile realizes the cross-process
// channel: a Log opened a second time over the same path sees bytes
// written by the first, because both map the same underlying file.
func TestNewSharedRoundTripsThroughTheSameFile(t *testing.T) {
	path := t.TempDir() + "/recordlog.ring"

	writer, err := NewShared(path, 16)
	if err != nil {
		t.Fatalf("NewShared(writer) error: %v", err)
	}
	h := profile.NewRegionHash("shared_region", profile.HintCompute)
	writer.Enter(h, 1.0)
	writer.Exit(h, 2.0)
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close() error: %v", err)
	}

	reader, err := NewShared(path, 16)
	if err != nil {
		t.Fatalf("NewShared(reader) error: %v", err)
	}
	defer reader.Close()

	records, _ := reader.Drain()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2 (enter+exit persisted in the mapped file)", len(records))
	}
	if records[0].Hash != h || records[1].Hash != h {
		t.Fatalf("records = %+v, want both tagged with the shared region hash", records)
	}
}
