package monitor

import (
	"testing"

	constiogroup "github.com/geopmd/core/internal/iogroup/const"
	"github.com/geopmd/core/internal/platformio"
	"github.com/geopmd/core/internal/topo"
)

// TestThreeTickConstantSignalReport realizes spec scenario 1: three
// ticks of constant cpu-energy=100.0J should yield
// count=3 first=100 last=100 min=100 max=100 mean=100 std=0.
func TestThreeTickConstantSignalReport(t *testing.T) {
	pio := platformio.New()
	g := constiogroup.New("const", map[string]topo.Domain{
		"cpu_energy": topo.DomainBoard,
		"gpu_energy": topo.DomainBoard,
	})
	pio.Register(g)
	g.Set("cpu_energy", 0, 100.0)
	g.Set("gpu_energy", 0, 50.0)

	m := New()
	m.Configure(pio, []SignalSpec{
		{Name: "cpu_energy", Domain: topo.DomainBoard, DomainIdx: 0},
		{Name: "gpu_energy", Domain: topo.DomainBoard, DomainIdx: 0},
	})
	if err := m.Init(0, 0, true); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := pio.ReadBatch(); err != nil {
			t.Fatal(err)
		}
		if _, err := m.SamplePlatform(); err != nil {
			t.Fatal(err)
		}
	}

	s := m.Stats()["cpu_energy"].Stats()
	if s.Count != 3 || s.First != 100 || s.Last != 100 || s.Min != 100 || s.Max != 100 || s.Mean != 100 || s.Std != 0 {
		t.Fatalf("cpu_energy stats = %+v, want count=3 first=100 last=100 min=100 max=100 mean=100 std=0", s)
	}
}

func TestSplitPolicyReplicatesToFanOut(t *testing.T) {
	m := New()
	if err := m.Init(1, 2, false); err != nil {
		t.Fatal(err)
	}
	children, err := m.SplitPolicy([]float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("len(children) = %d, want 2", len(children))
	}
	for _, c := range children {
		if len(c) != 3 || c[0] != 1 || c[1] != 2 || c[2] != 3 {
			t.Fatalf("child policy = %v, want replica of [1 2 3]", c)
		}
	}
}

func TestAggregateSampleSums(t *testing.T) {
	m := New()
	out, err := m.AggregateSample([][]float64{{1, 2, 3}, {10, 20, 30}})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{11, 22, 33}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d] = %v, want %v", i, out[i], w)
		}
	}
}
