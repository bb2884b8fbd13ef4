// Package runtimeservice implements the remote policy channel: a
// request/response front end a service thread can expose (over
// whatever transport the caller wires in, e.g. cmd/geopmd's MCP
// tool server) to change the running agent's policy and pull
// statistics out of it, without the controller's tick loop ever
// blocking on that transport.
package runtimeservice

import (
	"sync"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/geopmerr"
	"github.com/geopmd/core/internal/report"
)

// Policy is the state SetPolicy installs and the controller's tick
// loop consumes. Service validates AgentName and stores every field
// as given; it attaches no meaning of its own to Period.
type Policy struct {
	AgentName   string
	Period      float64
	ProfileName string
	Params      []float64
}

// Service is the shared mutex-guarded state a service thread's RPC
// handlers and the controller's tick loop both touch. The service
// thread never holds the mutex across I/O: every method here copies
// small fixed-size state and returns.
type Service struct {
	mu sync.Mutex

	policy    Policy
	isUpdated bool
	agentName string

	stats      map[string]*report.MomentAccumulator
	childHosts []string
}

// New creates a Service with no policy installed and an empty
// statistics table.
func New() *Service {
	return &Service{stats: make(map[string]*report.MomentAccumulator)}
}

// SetPolicy atomically replaces the current policy. If agentName
// names a registry entry that doesn't exist, returns a geopmerr
// Invalid error and leaves the prior policy untouched — matching the
// core's "caller bug surfaces immediately" error-kind convention.
func (s *Service) SetPolicy(p Policy) error {
	if p.AgentName != "" {
		if _, ok := agent.New(p.AgentName); !ok {
			return geopmerr.New(geopmerr.Invalid, "runtimeservice: unknown agent %q", p.AgentName)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
	s.agentName = p.AgentName
	s.isUpdated = true
	return nil
}

// PollPolicy is the controller-side half of SetPolicy: it returns the
// current policy and whether it's new since the last PollPolicy call,
// clearing the isUpdated flag. The controller checks this at the top
// of every tick.
func (s *Service) PollPolicy() (Policy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isUpdated {
		return Policy{}, false
	}
	s.isUpdated = false
	return s.policy, true
}

// Record folds one observation of metric into the service's running
// statistics — the controller side's contribution to the window
// GetReport next reports on.
func (s *Service) Record(metric string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.stats[metric]
	if !ok {
		acc = report.NewMomentAccumulator()
		s.stats[metric] = acc
	}
	acc.Add(value)
}

// Snapshot is one metric's statistics window, returned by GetReport.
type Snapshot struct {
	Metric string
	Stats  report.Snapshot
}

// GetReport atomically swaps in a fresh accumulator per metric and
// returns the previous window's statistics — the same atomic-swap
// idiom as report.MomentAccumulator.Reset, applied across the whole
// metric table under one mutex acquisition.
func (s *Service) GetReport() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.stats))
	for metric, acc := range s.stats {
		snap := acc.Reset()
		if snap.Count == 0 {
			continue // nothing observed this window; omit rather than report all-NaN
		}
		out = append(out, Snapshot{Metric: metric, Stats: snap})
	}
	return out
}

// AddChildHost and RemoveChildHost are reserved for hierarchical
// federation: a node registering or deregistering a child node this
// service should include in its reduction tree. Neither is exercised
// by a single-node deployment; both are no-ops beyond bookkeeping
// until a federated topology is wired in.
func (s *Service) AddChildHost(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.childHosts = appendUnique(s.childHosts, host)
}

func (s *Service) RemoveChildHost(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.childHosts {
		if h == host {
			s.childHosts = append(s.childHosts[:i], s.childHosts[i+1:]...)
			return
		}
	}
}

// ChildHosts returns the currently registered child hosts.
func (s *Service) ChildHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.childHosts...)
}

func appendUnique(hosts []string, host string) []string {
	for _, h := range hosts {
		if h == host {
			return hosts
		}
	}
	return append(hosts, host)
}
