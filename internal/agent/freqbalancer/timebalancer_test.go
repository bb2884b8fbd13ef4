package freqbalancer

import (
	"math"
	"testing"
)

func TestBalanceFrequenciesByTimeEqualizesTime(t *testing.T) {
	b := NewTimeBalancer(1.0, 3.7)
	// Core 0 ran for 10s at 2.0GHz; core 1 ran for 20s (the slowest)
	// at 2.0GHz. Core 0 should be slowed toward core 1's pace:
	// target = 2.0 * 10 / 20 = 1.0.
	targets := b.BalanceFrequenciesByTime(
		[]float64{10, 20},
		[]float64{2.0, 2.0},
		[]float64{2.0, 2.0},
		nil,
		0,
	)
	if !approxEqual(targets[0], 1.0, 1e-9) {
		t.Errorf("targets[0] = %v, want 1.0", targets[0])
	}
	if !approxEqual(targets[1], 2.0, 1e-9) {
		t.Errorf("targets[1] = %v, want unchanged 2.0 (it is the slowest)", targets[1])
	}
	if b.GetTargetTime() != 20 {
		t.Errorf("GetTargetTime() = %v, want 20 (slowest observed time)", b.GetTargetTime())
	}
}

func TestBalanceFrequenciesByTimeClampsToBounds(t *testing.T) {
	b := NewTimeBalancer(1.0, 3.7)
	targets := b.BalanceFrequenciesByTime(
		[]float64{1, 100},
		[]float64{3.7, 3.7},
		[]float64{3.7, 3.7},
		nil,
		0,
	)
	if targets[0] != 1.0 {
		t.Errorf("targets[0] = %v, want clamped to min 1.0", targets[0])
	}
}

func TestBalanceFrequenciesByTimePreservesNaNEntries(t *testing.T) {
	b := NewTimeBalancer(1.0, 3.7)
	targets := b.BalanceFrequenciesByTime(
		[]float64{math.NaN(), 20},
		[]float64{2.0, 2.0},
		[]float64{2.0, 2.0},
		nil,
		0,
	)
	if targets[0] != 2.0 {
		t.Errorf("targets[0] = %v, want previous control frequency preserved on NaN time", targets[0])
	}
}

func TestBalanceFrequenciesByTimeRespectsDetectorWorstCase(t *testing.T) {
	b := NewTimeBalancer(1.0, 3.7)
	limits := [][]FreqLimitPoint{
		{{HighPriorityCount: 0, AchievableFreq: 3.7}, {HighPriorityCount: 1, AchievableFreq: 2.5}},
		nil,
	}
	targets := b.BalanceFrequenciesByTime(
		[]float64{20, 20},
		[]float64{3.7, 3.7},
		[]float64{3.7, 3.7},
		limits,
		2.1,
	)
	if targets[0] != 2.5 {
		t.Errorf("targets[0] = %v, want capped at detector worst-case 2.5", targets[0])
	}
}
