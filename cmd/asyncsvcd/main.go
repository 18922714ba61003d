// Command asyncsvcd runs the demo asyncsvc workload under a suture
// supervisor, restarting it with fresh configuration whenever it fails or
// its config file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/axondata/go-asyncsvc"
	"github.com/axondata/go-asyncsvc/internal/config"
	"github.com/axondata/go-asyncsvc/internal/logging"
	"github.com/axondata/go-asyncsvc/internal/workload"
	"github.com/axondata/go-asyncsvc/promstats"
	"github.com/axondata/go-asyncsvc/supervise"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $"+config.PathEnvVar+")")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("asyncsvcd", asyncsvc.Version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "asyncsvcd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stats := promstats.NewCollector()
	reg.MustRegister(stats)
	metrics := workload.NewMetrics(reg)

	// Every (re)start reloads the config so edits take effect.
	path := cfg.Path()
	factory := func() (*asyncsvc.Manager, error) {
		cur, err := config.Load(path)
		if err != nil {
			logger.Error().Err(err).Msg("reloading config; keeping previous")
			cur = cfg
		}
		cfg = cur
		return newManager(ctx, cur, path, reg, metrics, logger)
	}

	sup := supervise.NewSupervisor("asyncsvcd", logging.NewSlogLogger(logger), supervise.TreeConfig{
		ShutdownTimeout: cfg.StopGrace * 2,
	})
	sup.Add(supervise.New("workload", factory,
		supervise.WithLogger(logger),
		supervise.WithStartHook(publishTo(stats)),
	))

	logger.Info().
		Str("version", asyncsvc.Version).
		Str("runtime", cfg.Runtime).
		Str("config", path).
		Msg("asyncsvcd starting")

	err = sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info().Err(err).Msg("asyncsvcd stopped")
	return err
}

// publishTo exports each started Manager through stats. Restarts reuse the
// Manager name, so the newest run replaces the previous one.
func publishTo(stats *promstats.Collector) func(*asyncsvc.Manager) {
	return func(m *asyncsvc.Manager) {
		stats.Add(m)
	}
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newManager(ctx context.Context, cfg *config.Config, path string, reg *prometheus.Registry, metrics *workload.Metrics, logger zerolog.Logger) (*asyncsvc.Manager, error) {
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := workload.Options{
		Workers:        cfg.Workers,
		Tick:           cfg.Tick,
		MetricsListen:  cfg.Metrics.Listen,
		Gatherer:       reg,
		ReportPath:     cfg.Report.Path,
		ReportInterval: cfg.Report.Interval,
		Logger:         logger,
	}
	if cfg.Watch.Enabled {
		opts.WatchPath = path
	}

	return asyncsvc.NewManager(workload.New(opts, metrics),
		asyncsvc.WithName("workload"),
		asyncsvc.WithOwnedRuntime(rt),
		asyncsvc.WithLogger(logger),
	), nil
}

func newRuntime(ctx context.Context, cfg *config.Config) (asyncsvc.Runtime, error) {
	switch cfg.Runtime {
	case config.RuntimeGoroutine:
		return asyncsvc.NewGoroutineRuntime(), nil
	case config.RuntimeStopper:
		return asyncsvc.NewStopperRuntime(ctx, cfg.StopGrace), nil
	case config.RuntimeLoop:
		return asyncsvc.NewLoopRuntime(), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q", cfg.Runtime)
	}
}
