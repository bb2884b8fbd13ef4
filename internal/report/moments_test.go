package report

import "testing"

func TestMomentAccumulatorConstantSeries(t *testing.T) {
	m := NewMomentAccumulator()
	for i := 0; i < 3; i++ {
		m.Add(100.0)
	}
	s := m.Stats()
	if s.Count != 3 || s.First != 100 || s.Last != 100 || s.Min != 100 || s.Max != 100 || s.Mean != 100 || s.Std != 0 {
		t.Fatalf("stats = %+v, want count=3 first=100 last=100 min=100 max=100 mean=100 std=0", s)
	}
}

func TestMomentAccumulatorIgnoresNaN(t *testing.T) {
	m := NewMomentAccumulator()
	m.Add(10)
	m.Add(nanValue())
	m.Add(20)
	s := m.Stats()
	if s.Count != 2 {
		t.Fatalf("count = %d, want 2 (NaN ignored)", s.Count)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestMomentAccumulatorResetReturnsPriorWindow(t *testing.T) {
	m := NewMomentAccumulator()
	m.Add(5)
	m.Add(15)
	prior := m.Reset()
	if prior.Count != 2 || prior.Mean != 10 {
		t.Fatalf("prior window = %+v, want count=2 mean=10", prior)
	}
	fresh := m.Stats()
	if fresh.Count != 0 {
		t.Fatalf("accumulator not reset: count=%d", fresh.Count)
	}
}
