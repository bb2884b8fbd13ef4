// Package controller implements the per-node tick loop: each node in
// the reduction tree runs one Controller, which drives its Agent
// through the down (policy), platform (adjust/sample), and up (sample
// aggregation) phases every period, and handles graceful shutdown
// exactly like the source orchestrator's signal-driven partial-report
// path.
package controller

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/tree"
)

// TraceWriter receives one row of trace values per tick.
type TraceWriter interface {
	WriteRow(values []float64) error
}

// ReportSink receives the final header/host/region key-value maps
// when the controller exits.
type ReportSink interface {
	Finish(header, host map[string]string, region map[uint64]map[string]string, truncated bool) error
}

// Controller drives a single node's Agent through the tick loop.
type Controller struct {
	agent  agent.Agent
	level  *tree.Level
	isRoot bool
	isLeaf bool

	trace  TraceWriter
	report ReportSink

	lastPolicy     []float64
	externalPolicy []float64
	externalMu     sync.Mutex

	tickCount   uint64
	errorCount  uint64
	lastTickErr error
}

// New creates a Controller for one node. When isRoot is true, the
// node reads its policy from SetExternalPolicy (e.g. fed by
// RuntimeService) instead of a parent link.
func New(a agent.Agent, level *tree.Level, isRoot, isLeaf bool, trace TraceWriter, report ReportSink) *Controller {
	return &Controller{agent: a, level: level, isRoot: isRoot, isLeaf: isLeaf, trace: trace, report: report}
}

// SetExternalPolicy installs the policy vector a root controller uses
// in place of a parent link. Safe to call concurrently with Run from
// another goroutine (e.g. a RuntimeService RPC handler).
func (c *Controller) SetExternalPolicy(policy []float64) {
	c.externalMu.Lock()
	defer c.externalMu.Unlock()
	c.externalPolicy = append([]float64(nil), policy...)
}

// Run executes the tick loop until ctx is cancelled or a SIGINT/SIGTERM
// is received. Cancellation is checked at the top of each tick, so an
// in-flight tick and its agent Wait run to completion first; Run then
// hands whatever report state the agent has accumulated to the report
// sink (marked truncated after a signal) and returns the sink's error,
// or nil when no sink is set.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var truncated atomic.Bool
	go func() {
		select {
		case <-sigCh:
			truncated.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := c.agent.Init(0, c.fanOut(), c.isRoot); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return c.finish(truncated.Load())
		default:
		}

		if err := c.tick(); err != nil {
			c.errorCount++
			c.lastTickErr = err
		}
		c.tickCount++

		c.agent.Wait()
	}
}

// tick runs exactly one iteration of the down/platform/up phases.
func (c *Controller) tick() error {
	policy := c.downPhase()
	if policy != nil {
		if err := c.agent.ValidatePolicy(policy); err != nil {
			return err
		}
		c.lastPolicy = policy

		if c.level != nil && !c.isLeaf {
			children, err := c.agent.SplitPolicy(policy)
			if err != nil {
				return err
			}
			if c.agent.DoSendPolicy() {
				if err := c.level.SendPolicyDown(children); err != nil {
					return err
				}
			}
		}
	}

	if c.isLeaf && c.lastPolicy != nil {
		if err := c.agent.AdjustPlatform(c.lastPolicy); err != nil {
			return err
		}
	}

	sample, err := c.agent.SamplePlatform()
	if err != nil {
		return err
	}

	if c.level != nil && !c.isLeaf {
		childSamples := c.level.CollectSamplesFromChildren()
		aggregated, err := c.agent.AggregateSample(childSamples)
		if err != nil {
			return err
		}
		sample = aggregated
	}

	if c.agent.DoSendSample() && c.level != nil {
		c.level.SendSampleUp(sample)
	}

	if c.trace != nil {
		if err := c.trace.WriteRow(c.agent.TraceValues()); err != nil {
			return err
		}
	}
	return nil
}

// downPhase returns this tick's policy vector, from the parent link
// or from the externally-set policy at the root. Returns nil if
// nothing new arrived (policy changes are infrequent relative to the
// tick rate; an unchanged policy is not an error).
func (c *Controller) downPhase() []float64 {
	if c.isRoot {
		c.externalMu.Lock()
		defer c.externalMu.Unlock()
		if c.externalPolicy == nil {
			return nil
		}
		p := c.externalPolicy
		c.externalPolicy = nil
		return p
	}
	if c.level == nil {
		return nil
	}
	p, ok := c.level.ReceivePolicyFromParent()
	if !ok {
		return nil
	}
	return p
}

func (c *Controller) fanOut() int {
	if c.level == nil {
		return 0
	}
	return len(c.level.ChildDown)
}

func (c *Controller) finish(truncated bool) error {
	if c.report == nil {
		return nil
	}
	header := c.agent.ReportHeader()
	host := c.agent.ReportHost()
	region := c.agent.ReportRegion()
	return c.report.Finish(header, host, region, truncated)
}

// TickCount returns the number of completed ticks (successful or not).
func (c *Controller) TickCount() uint64 { return c.tickCount }

// ErrorCount returns the number of ticks that returned an error.
func (c *Controller) ErrorCount() uint64 { return c.errorCount }

// LastError returns the most recent tick error, or nil.
func (c *Controller) LastError() error { return c.lastTickErr }
