package freqbalancer

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// TestImmediateOverridesNonAppAndNetworkCores realizes the frequency
// balancer scenario: 1 package, 4 cores, platform min/max/step =
// 1.0/3.7/0.1 GHz, low-priority frequency 2.1 GHz. Core 0 has an
// invalid (non-application) region hash, core 3 has held a NETWORK
// hint for 4 consecutive samples, cores 1 and 2 are normal compute
// cores. The expected immediate frequency vector is
// [2.1, 3.7, 3.7, 2.1] and the CLOS classification is
// [LOW, HIGH, HIGH, LOW].
func TestImmediateOverridesNonAppAndNetworkCores(t *testing.T) {
	a := New()
	a.Configure(4, 1.0, 3.7, 0.1, 2.1)
	a.SetSSTTF(true)
	if err := a.Init(0, 0, true); err != nil {
		t.Fatal(err)
	}

	obs := []CoreObservation{
		{RegionHashValid: false, Hint: HintUnset},
		{RegionHashValid: true, Hint: HintCompute, ConsecutiveNonNetwork: 1},
		{RegionHashValid: true, Hint: HintCompute, ConsecutiveNonNetwork: 1},
		{RegionHashValid: true, Hint: HintNetwork, ConsecutiveNetwork: 4},
	}
	a.SetObservations(obs, 0, 0)

	if err := a.AdjustPlatform(nil); err != nil {
		t.Fatal(err)
	}

	// Tolerance covers the governor's floor/ceil step-quantization,
	// which can snap to the adjacent step when a target sits within
	// float64 rounding error of an exact step multiple.
	freqs := a.AppliedFrequencies()
	want := []float64{2.1, 3.7, 3.7, 2.1}
	for i, w := range want {
		if !approxEqual(freqs[i], w, 0.11) {
			t.Errorf("freqs[%d] = %v, want %v", i, freqs[i], w)
		}
	}

	classes := a.AppliedCLOS()
	wantClasses := []int{3, 0, 0, 3} // LOW, HIGH, HIGH, LOW (CLOSLowPriority=3, CLOSHighPriority=0)
	for i, w := range wantClasses {
		if int(classes[i]) != w {
			t.Errorf("classes[%d] = %v, want %v", i, classes[i], w)
		}
	}
}

// TestPackageWideLiftWhenNoHighPriorityActive realizes the
// package-wide safety-lift rule: when every core is either forced low
// (network/non-app) or has not yet accumulated K_non_net consecutive
// non-network samples, cores that do qualify get lifted back to
// platform max rather than left stuck below it.
func TestPackageWideLiftWhenNoHighPriorityActive(t *testing.T) {
	a := New()
	a.Configure(2, 1.0, 3.7, 0.1, 2.1)
	a.SetThresholds(2, 5, 3, 3)
	if err := a.Init(0, 0, true); err != nil {
		t.Fatal(err)
	}

	// Set both core targets directly to the low-priority floor so
	// neither is "high priority active" yet, then confirm
	// a core with enough non-network history gets lifted.
	a.targets[0] = 2.1
	a.targets[1] = 2.1

	obs := []CoreObservation{
		{RegionHashValid: true, Hint: HintCompute, ConsecutiveNonNetwork: 5},
		{RegionHashValid: true, Hint: HintCompute, ConsecutiveNonNetwork: 5},
	}
	a.SetObservations(obs, 0, 0)
	if err := a.AdjustPlatform(nil); err != nil {
		t.Fatal(err)
	}

	freqs := a.AppliedFrequencies()
	for i, f := range freqs {
		if !approxEqual(f, 3.7, 0.11) {
			t.Errorf("freqs[%d] = %v, want lifted to platform max 3.7", i, f)
		}
	}
}

func TestValidatePolicyReplacesNaN(t *testing.T) {
	a := New()
	policy := []float64{math.NaN(), 1.5}
	if err := a.ValidatePolicy(policy); err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(policy[0]) {
		t.Errorf("policy[0] still NaN after ValidatePolicy")
	}
	if policy[1] != 1.5 {
		t.Errorf("policy[1] = %v, want unchanged 1.5", policy[1])
	}
}

func TestSplitPolicyReplicatesToFanOut(t *testing.T) {
	a := New()
	if err := a.Init(1, 3, false); err != nil {
		t.Fatal(err)
	}
	children, err := a.SplitPolicy([]float64{4, 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 3 {
		t.Fatalf("len(children) = %d, want 3", len(children))
	}
	for _, c := range children {
		if c[0] != 4 || c[1] != 5 {
			t.Fatalf("child policy = %v, want replica of [4 5]", c)
		}
	}
}

func TestAggregateSampleRejectsMismatchedLength(t *testing.T) {
	a := New()
	_, err := a.AggregateSample([][]float64{{1, 2}, {1, 2, 3}})
	if err == nil {
		t.Fatal("expected error for mismatched child sample length")
	}
}
