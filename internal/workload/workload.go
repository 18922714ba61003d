// Package workload is the demo Service run by asyncsvcd.
//
// It exercises every kind of task a Manager supervises: short-lived jobs,
// long-running workers, and daemon tasks serving metrics, writing stats
// reports and watching the config file.
package workload

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/axondata/go-asyncsvc"
	"github.com/axondata/go-asyncsvc/internal/report"
	"github.com/axondata/go-asyncsvc/internal/watch"
)

// shutdownTimeout bounds the metrics server's graceful shutdown
const shutdownTimeout = 5 * time.Second

// Options configures the workload
type Options struct {
	// Workers is the number of worker tasks
	Workers int
	// Tick is how often each worker starts a job
	Tick time.Duration
	// MetricsListen is the /metrics listen address; empty disables the server
	MetricsListen string
	// Gatherer is served on /metrics
	Gatherer prometheus.Gatherer
	// ReportPath is where stats reports are written; empty disables them
	ReportPath string
	// ReportInterval is the time between stats reports
	ReportInterval time.Duration
	// WatchPath is the config file; a change ends the service
	WatchPath string
	// Logger receives workload events
	Logger zerolog.Logger
}

// Metrics are the workload's own counters. They outlive any single run,
// so they are created once per process.
type Metrics struct {
	Jobs   prometheus.Counter
	Ticks  *prometheus.CounterVec
	Writes prometheus.Counter
}

// NewMetrics registers the workload metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Jobs: f.NewCounter(prometheus.CounterOpts{
			Name: "asyncsvcd_jobs_completed_total",
			Help: "Jobs completed by workers",
		}),
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "asyncsvcd_worker_ticks_total",
			Help: "Worker ticks",
		}, []string{"worker"}),
		Writes: f.NewCounter(prometheus.CounterOpts{
			Name: "asyncsvcd_reports_written_total",
			Help: "Stats reports written",
		}),
	}
}

// Service is the asyncsvcd workload
type Service struct {
	opts    Options
	metrics *Metrics
}

var _ asyncsvc.Service = (*Service)(nil)

// New creates the workload
func New(opts Options, metrics *Metrics) *Service {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Service{opts: opts, metrics: metrics}
}

// Run implements asyncsvc.Service
func (s *Service) Run(ctx context.Context, m *asyncsvc.Manager) error {
	for i := range s.opts.Workers {
		name := fmt.Sprintf("worker-%d", i)
		if _, err := m.RunTask(s.worker(m, name), asyncsvc.WithTaskName(name)); err != nil {
			return err
		}
	}

	if s.opts.MetricsListen != "" {
		if _, err := m.RunDaemonTask(s.serveMetrics, asyncsvc.WithTaskName("metrics")); err != nil {
			return err
		}
	}
	if s.opts.ReportPath != "" {
		if _, err := m.RunDaemonTask(s.reporter(m), asyncsvc.WithTaskName("reporter")); err != nil {
			return err
		}
	}
	if s.opts.WatchPath != "" {
		path := s.opts.WatchPath
		_, err := m.RunDaemonTask(func(ctx context.Context) error {
			if err := watch.UntilChanged(ctx, path); err != nil {
				return err
			}
			s.opts.Logger.Info().Str("path", path).Msg("config changed")
			return nil
		}, asyncsvc.WithTaskName("config-watch"))
		if err != nil {
			return err
		}
	}

	s.opts.Logger.Info().Int("workers", s.opts.Workers).Msg("workload running")
	return asyncsvc.SleepForever(ctx)
}

// worker starts one short job per tick until cancelled
func (s *Service) worker(m *asyncsvc.Manager, name string) asyncsvc.TaskFunc {
	ticks := s.metrics.Ticks.WithLabelValues(name)
	return func(ctx context.Context) error {
		for seq := 0; ; seq++ {
			if err := asyncsvc.Sleep(ctx, s.opts.Tick); err != nil {
				return err
			}
			ticks.Inc()

			_, err := m.RunTask(s.job, asyncsvc.WithTaskName(fmt.Sprintf("%s/job-%d", name, seq)))
			if errors.Is(err, asyncsvc.ErrLifecycle) {
				// The Manager is shutting down
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

func (s *Service) job(ctx context.Context) error {
	if err := asyncsvc.Sleep(ctx, s.opts.Tick/4); err != nil {
		return err
	}
	s.metrics.Jobs.Inc()
	return nil
}

// reporter writes a stats report every interval, and once more on the way out
func (s *Service) reporter(m *asyncsvc.Manager) asyncsvc.TaskFunc {
	return func(ctx context.Context) error {
		for {
			if err := s.writeReport(m); err != nil {
				return err
			}
			if err := asyncsvc.Sleep(ctx, s.opts.ReportInterval); err != nil {
				if werr := s.writeReport(m); werr != nil {
					s.opts.Logger.Warn().Err(werr).Msg("final report")
				}
				return err
			}
		}
	}
}

func (s *Service) writeReport(m *asyncsvc.Manager) error {
	if err := report.Write(s.opts.ReportPath, report.Build(m, false, time.Now())); err != nil {
		return err
	}
	s.metrics.Writes.Inc()
	return nil
}

// serveMetrics runs the /metrics server until cancelled. The server runs on
// its own goroutine so the task only ever suspends through asyncsvc.Await.
func (s *Service) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.MetricsListen)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		serveErr <- srv.Serve(ln)
	}()
	s.opts.Logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")

	if err := asyncsvc.Await(ctx, stopped); err == nil {
		return fmt.Errorf("metrics server: %w", <-serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("metrics server shutdown")
	}
	return ctx.Err()
}
