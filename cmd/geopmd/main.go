// geopmd — the GEOPM runtime control core's node daemon. Each geopmd
// process drives one Controller tick loop for a compiled-in Agent,
// exposes RuntimeService over a local MCP tool server for remote
// policy/report access, and writes the documented report/trace
// artifacts on exit.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/geopmd/core/internal/agent"
	"github.com/geopmd/core/internal/config"
	"github.com/geopmd/core/internal/controller"
	"github.com/geopmd/core/internal/overhead"
	"github.com/geopmd/core/internal/preflight"
	"github.com/geopmd/core/internal/report"
	"github.com/geopmd/core/internal/runtimeservice"
	"github.com/geopmd/core/internal/trace"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "geopmd",
		Short:   "GEOPM runtime control core daemon",
		Version: version,
	}

	var configPath string
	var force bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller tick loop and serve RuntimeService over MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath, force)
		},
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML policy/profile file")
	runCmd.Flags().BoolVar(&force, "force", false, "start even if preflight checks fail")

	preflightCmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run platform readiness checks and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreflightCmd()
		},
	}

	rootCmd.AddCommand(runCmd, preflightCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPreflightCmd() error {
	rep := preflight.Run()
	for _, c := range rep.Checks {
		status := "ok"
		if !c.Ready {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s: %s\n", status, c.Name, c.Detail)
	}
	if !rep.Ready() {
		os.Exit(1)
	}
	return nil
}

func runDaemon(configPath string, force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("geopmd: load config: %w", err)
	}

	rep := preflight.Run()
	if !rep.Ready() {
		for _, c := range rep.Failed() {
			fmt.Fprintf(os.Stderr, "geopmd: preflight failed: %s: %s\n", c.Name, c.Detail)
		}
		if !force {
			return fmt.Errorf("geopmd: preflight checks failed; pass --force to start anyway")
		}
	}

	pio := buildPlatformIO()

	a, ok := agent.New(cfg.AgentName)
	if !ok {
		return fmt.Errorf("geopmd: unknown agent %q (available: %v)", cfg.AgentName, agent.Names())
	}
	configureAgent(a, pio)

	runID := uuid.New().String()
	reportWriter := report.NewTextWriter(cfg.ReportPath, runID)

	traceWriter, err := trace.NewTSVWriter(cfg.TracePath, a.TraceNames(), a.TraceFormats())
	if err != nil {
		return fmt.Errorf("geopmd: trace writer: %w", err)
	}
	defer traceWriter.Close()

	ctrl := controller.New(a, nil, true, true, traceWriter, reportWriter)

	svc := runtimeservice.New()
	if err := svc.SetPolicy(runtimeservice.Policy{
		AgentName:   cfg.AgentName,
		Period:      cfg.PeriodSeconds,
		ProfileName: cfg.ProfileName,
		Params:      cfg.PolicyParams,
	}); err != nil {
		return fmt.Errorf("geopmd: set initial policy: %w", err)
	}
	ctrl.SetExternalPolicy(cfg.PolicyParams)

	overheadMon := overhead.NewMonitor()
	overheadMon.SnapshotBefore()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pollPolicy(ctx, svc, ctrl, cfg.Period)

	srv := newMCPServer(version, svc)
	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Printf("geopmd: mcp server: %v", err)
		}
	}()

	runErr := ctrl.Run(ctx)

	summary := overheadMon.SnapshotAfter()
	log.Printf("geopmd: exiting after %d ticks (%d errors); overhead: %+v", ctrl.TickCount(), ctrl.ErrorCount(), summary)
	return runErr
}

// pollPolicy periodically checks RuntimeService for a policy update and
// installs its Params as the controller's external (root-level)
// policy. The poll interval is the configured period (100ms when
// unset); it is independent of the agent's own wait period, so a
// policy change can lag by up to one poll interval plus one tick.
func pollPolicy(ctx context.Context, svc *runtimeservice.Service, ctrl *controller.Controller, period time.Duration) {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p, ok := svc.PollPolicy(); ok {
				ctrl.SetExternalPolicy(p.Params)
			}
		}
	}
}
