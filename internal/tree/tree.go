// Package tree implements the reduction-tree communicator every
// controller level uses to exchange policy (root-to-leaf) and sample
// (leaf-to-root) vectors with its parent and children, without ever
// blocking the caller on a slow or unresponsive peer.
package tree

import (
	"sync"

	"github.com/geopmd/core/internal/geopmerr"
)

// Link is one directed, non-blocking channel endpoint between two
// tree levels. InMemoryLink (below), the only implementation in this
// package, backs it with a mutex-guarded single-slot mailbox for
// single-process trees and tests.
type Link interface {
	// TrySend enqueues msg without blocking; it returns false if the
	// link's buffer is full, in which case the caller should retry
	// next tick rather than wait (per the no-blocking invariant).
	TrySend(msg []float64) bool
	// TryReceive returns the most recently enqueued message and true,
	// or (nil, false) if nothing is pending. Only the latest message
	// is ever returned — the tree communicator is a latest-value
	// channel, not a queue, because a stale policy is worse than a
	// skipped tick.
	TryReceive() ([]float64, bool)
}

// InMemoryLink is a single-slot latest-value mailbox.
type InMemoryLink struct {
	mu      sync.Mutex
	pending []float64
	has     bool
	sent    uint64
	dropped uint64
}

// NewInMemoryLink creates an empty link.
func NewInMemoryLink() *InMemoryLink {
	return &InMemoryLink{}
}

// TrySend always succeeds for a latest-value mailbox: a pending,
// unread message is simply overwritten. Dropped is counted for
// overhead accounting (the replaced message was never observed by the
// receiver).
func (l *InMemoryLink) TrySend(msg []float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.has {
		l.dropped++
	}
	cp := make([]float64, len(msg))
	copy(cp, msg)
	l.pending = cp
	l.has = true
	l.sent++
	return true
}

func (l *InMemoryLink) TryReceive() ([]float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.has {
		return nil, false
	}
	l.has = false
	return l.pending, true
}

// Stats returns the number of sends and the number of unread messages
// that were overwritten before being received.
func (l *InMemoryLink) Stats() (sent, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent, l.dropped
}

// Level is one node's view of a single level in the tree: a link down
// to the parent (policy in, sample out) and a set of links to
// children (policy out, sample in). The root level has no parent
// link; leaf levels have no child links.
type Level struct {
	ParentDown Link   // nil at the root
	ParentUp   Link   // nil at the root
	ChildDown  []Link // empty at the leaf
	ChildUp    []Link // empty at the leaf
}

// NewLevel wires an in-memory Level with fanOut children and an
// optional parent pair. Pass nil, nil for a root level.
func NewLevel(fanOut int, parentDown, parentUp Link) *Level {
	lvl := &Level{ParentDown: parentDown, ParentUp: parentUp}
	if fanOut > 0 {
		lvl.ChildDown = make([]Link, fanOut)
		lvl.ChildUp = make([]Link, fanOut)
		for i := 0; i < fanOut; i++ {
			lvl.ChildDown[i] = NewInMemoryLink()
			lvl.ChildUp[i] = NewInMemoryLink()
		}
	}
	return lvl
}

// SendPolicyDown pushes one policy vector per child, in order.
// Returns an error only if the number of policies doesn't match the
// number of children — a bug in the calling agent's SplitPolicy, per
// the Ordering error kind.
func (l *Level) SendPolicyDown(policies [][]float64) error {
	if len(policies) != len(l.ChildDown) {
		return geopmerr.New(geopmerr.Ordering, "tree: SplitPolicy produced %d policies for %d children", len(policies), len(l.ChildDown))
	}
	for i, p := range policies {
		l.ChildDown[i].TrySend(p)
	}
	return nil
}

// ReceivePolicyFromParent returns the latest policy vector sent down
// by the parent, or (nil, false) if none is pending — meaningless at
// the root, which sources policy externally.
func (l *Level) ReceivePolicyFromParent() ([]float64, bool) {
	if l.ParentDown == nil {
		return nil, false
	}
	return l.ParentDown.TryReceive()
}

// CollectSamplesFromChildren gathers the latest sample vector from
// every child link. A child with nothing pending yet contributes a
// nil entry; callers (agent.AggregateSample) must tolerate gaps from
// a child that hasn't reported this tick.
func (l *Level) CollectSamplesFromChildren() [][]float64 {
	out := make([][]float64, len(l.ChildUp))
	for i, link := range l.ChildUp {
		if v, ok := link.TryReceive(); ok {
			out[i] = v
		}
	}
	return out
}

// SendSampleUp forwards this level's aggregated sample to the parent;
// a no-op at the root.
func (l *Level) SendSampleUp(sample []float64) {
	if l.ParentUp == nil {
		return
	}
	l.ParentUp.TrySend(sample)
}
