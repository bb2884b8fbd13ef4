package tree

import "testing"

func TestInMemoryLinkSendReceive(t *testing.T) {
	l := NewInMemoryLink()
	if _, ok := l.TryReceive(); ok {
		t.Fatal("expected no pending message on empty link")
	}
	if !l.TrySend([]float64{1, 2, 3}) {
		t.Fatal("TrySend should always succeed")
	}
	got, ok := l.TryReceive()
	if !ok {
		t.Fatal("expected pending message")
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("got %v, want [1 2 3]", got)
	}
	if _, ok := l.TryReceive(); ok {
		t.Fatal("message should be consumed after one receive")
	}
}

func TestInMemoryLinkOverwriteCountsDropped(t *testing.T) {
	l := NewInMemoryLink()
	l.TrySend([]float64{1})
	l.TrySend([]float64{2}) // overwrites the unread [1]
	sent, dropped := l.Stats()
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	got, _ := l.TryReceive()
	if got[0] != 2 {
		t.Errorf("got %v, want latest value [2]", got)
	}
}

func TestLevelSendPolicyDownFanOut(t *testing.T) {
	lvl := NewLevel(3, nil, nil)
	err := lvl.SendPolicyDown([][]float64{{1}, {2}, {3}})
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3} {
		v, ok := lvl.ChildDown[i].TryReceive()
		if !ok || v[0] != want {
			t.Errorf("child %d = %v, want [%v]", i, v, want)
		}
	}
}

func TestLevelSendPolicyDownRejectsCountMismatch(t *testing.T) {
	lvl := NewLevel(2, nil, nil)
	err := lvl.SendPolicyDown([][]float64{{1}})
	if err == nil {
		t.Fatal("expected error for policy/child count mismatch")
	}
}

func TestLevelCollectSamplesFromChildrenTracksGaps(t *testing.T) {
	lvl := NewLevel(2, nil, nil)
	lvl.ChildUp[0].TrySend([]float64{10})
	// ChildUp[1] never sends this tick.
	samples := lvl.CollectSamplesFromChildren()
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	if samples[0] == nil || samples[0][0] != 10 {
		t.Errorf("samples[0] = %v, want [10]", samples[0])
	}
	if samples[1] != nil {
		t.Errorf("samples[1] = %v, want nil (no report this tick)", samples[1])
	}
}

func TestLevelRootHasNoParentLinks(t *testing.T) {
	root := NewLevel(2, nil, nil)
	if _, ok := root.ReceivePolicyFromParent(); ok {
		t.Fatal("root should never receive a policy from a parent")
	}
	root.SendSampleUp([]float64{1}) // must not panic at the root
}

func TestLevelChildReceivesParentPolicy(t *testing.T) {
	parentDown := NewInMemoryLink()
	parentUp := NewInMemoryLink()
	child := NewLevel(0, parentDown, parentUp)

	parentDown.TrySend([]float64{7, 8})
	got, ok := child.ReceivePolicyFromParent()
	if !ok || got[0] != 7 || got[1] != 8 {
		t.Fatalf("got %v, want [7 8]", got)
	}

	child.SendSampleUp([]float64{42})
	up, ok := parentUp.TryReceive()
	if !ok || up[0] != 42 {
		t.Fatalf("parentUp = %v, want [42]", up)
	}
}
