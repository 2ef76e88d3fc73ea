// Copyright 2025 James Ross
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arjaygg/ado-flow-metrics/internal/api"
	"github.com/arjaygg/ado-flow-metrics/internal/cache"
	"github.com/arjaygg/ado-flow-metrics/internal/config"
	"github.com/arjaygg/ado-flow-metrics/internal/events"
	"github.com/arjaygg/ado-flow-metrics/internal/flowconfig"
	"github.com/arjaygg/ado-flow-metrics/internal/ingest"
	"github.com/arjaygg/ado-flow-metrics/internal/metrics"
	"github.com/arjaygg/ado-flow-metrics/internal/obs"
	"github.com/arjaygg/ado-flow-metrics/internal/report"
	"github.com/arjaygg/ado-flow-metrics/internal/store"
)

var version = "dev"

const (
	exitOK           = 0
	exitFailure      = 1
	exitConfigError  = 2
	exitCancelled    = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: flowmetrics <fetch|calculate|sync|serve|demo> [flags]")
		return exitConfigError
	}

	cmdName := os.Args[1]
	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	configPath := fs.String("config", "config/config.yaml", "path to YAML config")
	lookbackDays := fs.Int("lookback-days", 0, "override ingestion.default_lookback_days (0 = use config)")
	team := fs.String("team", "", "comma-separated allow-list of assignee names to include in team metrics (empty = all)")
	demoCount := fs.Int("count", 200, "demo: number of synthetic work items to generate")
	demoSeed := fs.Int64("seed", 1, "demo: deterministic RNG seed")
	showVersion := fs.Bool("version", false, "print version and exit")
	_ = fs.Parse(os.Args[2:])

	if *showVersion {
		fmt.Println(version)
		return exitOK
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return exitConfigError
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return exitConfigError
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return exitConfigError
	}
	defer logger.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = obs.TracerShutdown(context.Background(), tp) }()
	}

	s, err := store.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init data store: %v\n", err)
		return exitConfigError
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelled := installSignalHandler(ctx, cancel, logger)

	allowList := parseTeamAllowList(*team)

	effectiveLookback := cfg.Ingestion.DefaultLookbackDays
	if *lookbackDays > 0 {
		effectiveLookback = *lookbackDays
	}

	switch cmdName {
	case "fetch":
		err = runFetch(ctx, cfg, s, effectiveLookback, logger)
	case "calculate":
		err = runCalculate(ctx, cfg, s, allowList, logger)
	case "sync":
		if err = runFetch(ctx, cfg, s, effectiveLookback, logger); err == nil {
			err = runCalculate(ctx, cfg, s, allowList, logger)
		}
	case "demo":
		err = runDemo(cfg, s, allowList, *demoCount, *demoSeed, logger)
	case "serve":
		err = runServe(ctx, cfg, s, allowList, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q: want fetch|calculate|sync|serve|demo\n", cmdName)
		return exitConfigError
	}

	if cancelled.Load() {
		return exitCancelled
	}
	if err != nil {
		logger.Error("command failed", obs.String("command", cmdName), obs.Err(err))
		return exitFailure
	}
	return exitOK
}

// installSignalHandler cancels ctx on SIGINT/SIGTERM and force-exits on a
// second signal after a grace window, mirroring the teacher's
// cmd/job-queue-system shutdown sequence.
func installSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *zap.Logger) *atomic.Bool {
	var cancelled atomic.Bool
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancelled.Store(true)
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(exitCancelled)
		case <-time.After(5 * time.Second):
		}
	}()
	_ = ctx
	return &cancelled
}

func parseTeamAllowList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runFetch(ctx context.Context, cfg *config.Config, s *store.Store, lookbackDays int, logger *zap.Logger) error {
	flow, err := flowconfig.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load flow config: %w", err)
	}

	pub, pubErr := events.New(cfg, logger)
	if pubErr != nil {
		logger.Info("event publishing disabled", obs.Err(pubErr))
	}
	defer pub.Close()

	engine := ingest.NewEngine(cfg, flow, logger)
	result, err := engine.Run(ctx, lookbackDays, cfg.Ingestion.HistoryLimit, func(p ingest.Progress) {
		pub.Progress(ctx, "", string(p.Phase), p.Done, p.Total, p.Items)
		logger.Info("ingestion progress",
			obs.String("phase", string(p.Phase)),
			obs.Int("done", p.Done),
			obs.Int("total", p.Total))
	})
	if err != nil {
		return fmt.Errorf("ingestion run: %w", err)
	}

	if err := s.WriteWorkItems(result.Items); err != nil {
		return fmt.Errorf("persist work items: %w", err)
	}

	pub.Complete(ctx, "", len(result.Items), len(result.ValidationErrors), result.Degraded, result.Cancelled)

	logger.Info("fetch completed",
		obs.Int("item_count", len(result.Items)),
		obs.Bool("degraded", result.Degraded))
	return nil
}

func runCalculate(ctx context.Context, cfg *config.Config, s *store.Store, allowList []string, logger *zap.Logger) error {
	flow, err := flowconfig.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load flow config: %w", err)
	}

	items, err := s.ReadWorkItems()
	if err != nil {
		return fmt.Errorf("read work items: %w", err)
	}

	now := time.Now().UTC()
	m := metrics.Calculate(items, flow, now, allowList)
	rep := report.Build(m, flow, nil, nil, nil, false, now)

	if err := s.WriteReport(rep, report.Dashboard(rep)); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}

	var rc *cache.ReportCache
	if cfg.Cache.RedisAddr != "" {
		rdb := cache.New(cfg)
		defer rdb.Close()
		rc = cache.NewReportCache(rdb, cfg.Cache.TTL)
		if err := rc.PutReport(ctx, rep, now); err != nil {
			logger.Warn("failed to cache report", obs.Err(err))
		}
	}

	b, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(b))
	return nil
}

func runDemo(cfg *config.Config, s *store.Store, allowList []string, count int, seed int64, logger *zap.Logger) error {
	flow, err := flowconfig.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load flow config: %w", err)
	}

	items := ingest.NewDemoSource(seed).Generate(count, cfg.Ingestion.DefaultLookbackDays, flow.States)
	if err := s.WriteWorkItems(items); err != nil {
		return fmt.Errorf("persist demo work items: %w", err)
	}

	now := time.Now().UTC()
	m := metrics.Calculate(items, flow, now, allowList)
	rep := report.Build(m, flow, nil, nil, nil, false, now)
	if err := s.WriteReport(rep, report.Dashboard(rep)); err != nil {
		return fmt.Errorf("persist demo report: %w", err)
	}

	logger.Info("demo data generated", obs.Int("item_count", len(items)))
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, s *store.Store, allowList []string, logger *zap.Logger) error {
	flow, err := flowconfig.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load flow config: %w", err)
	}

	pub, pubErr := events.New(cfg, logger)
	if pubErr != nil {
		logger.Info("event publishing disabled", obs.Err(pubErr))
	}
	defer pub.Close()

	var rc *cache.ReportCache
	if cfg.Cache.RedisAddr != "" {
		rdb := cache.New(cfg)
		defer rdb.Close()
		rc = cache.NewReportCache(rdb, cfg.Cache.TTL)
	}

	engine := ingest.NewEngine(cfg, flow, logger)

	readyCheck := func(c context.Context) error { return nil }
	httpSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	apiSrv := api.NewServer(cfg, s, rc, engine, flow, pub, allowList, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- apiSrv.Start() }()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return apiSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
