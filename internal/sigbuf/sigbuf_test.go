package sigbuf

import "testing"

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(Point{Time: float64(i), Value: float64(i) * 2})
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if got := r.At(i).Time; got != w {
			t.Errorf("At(%d).Time = %v, want %v", i, got, w)
		}
	}
}

func TestRingNoOverflowOverManyPushes(t *testing.T) {
	r := NewRing(4)
	for i := 0; i < 1_000_000; i++ {
		r.Push(Point{Time: float64(i)})
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
	if r.At(3).Time != 999999 {
		t.Fatalf("newest point = %v, want 999999", r.At(3).Time)
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(2)
	r.Push(Point{Time: 1})
	r.Push(Point{Time: 2})
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", r.Len())
	}
	r.Push(Point{Time: 9})
	if r.Len() != 1 || r.At(0).Time != 9 {
		t.Fatalf("ring did not reuse storage correctly after Clear")
	}
}
