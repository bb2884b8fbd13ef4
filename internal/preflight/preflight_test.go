package preflight

import "testing"

func TestReportReadyRequiresEveryCheckToPass(t *testing.T) {
	r := Report{Checks: []Check{{Name: "a", Ready: true}, {Name: "b", Ready: true}}}
	if !r.Ready() {
		t.Fatal("expected Ready() true when every check passed")
	}

	r.Checks = append(r.Checks, Check{Name: "c", Ready: false, Detail: "nope"})
	if r.Ready() {
		t.Fatal("expected Ready() false when any check failed")
	}
}

func TestReportFailedReturnsOnlyFailingChecks(t *testing.T) {
	r := Report{Checks: []Check{
		{Name: "a", Ready: true},
		{Name: "b", Ready: false, Detail: "missing"},
	}}
	failed := r.Failed()
	if len(failed) != 1 || failed[0].Name != "b" {
		t.Fatalf("Failed() = %+v, want exactly [b]", failed)
	}
}

func TestRunProducesAllFourChecks(t *testing.T) {
	r := Run()
	if len(r.Checks) != 4 {
		t.Fatalf("len(Checks) = %d, want 4", len(r.Checks))
	}
	names := map[string]bool{}
	for _, c := range r.Checks {
		names[c.Name] = true
	}
	for _, want := range []string{"msr_device", "msr_safe_module", "cpufreq_sysfs", "btf_core"} {
		if !names[want] {
			t.Errorf("missing check %q in report", want)
		}
	}
}
