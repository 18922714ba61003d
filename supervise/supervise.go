// Package supervise runs asyncsvc Services under a suture supervisor.
//
// A Manager is single-use, so the adapter builds a fresh one from a Factory
// on every (re)start. A Manager that finishes cleanly is not restarted; one
// that fails is, subject to the supervisor's backoff.
package supervise

import (
	"context"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/axondata/go-asyncsvc"
)

// Factory builds the Manager for one run of a supervised Service
type Factory func() (*asyncsvc.Manager, error)

// Service adapts a Factory to suture.Service
type Service struct {
	name    string
	factory Factory
	log     zerolog.Logger
	onStart func(*asyncsvc.Manager)
}

var _ suture.Service = (*Service)(nil)

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger for restart decisions
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// WithStartHook calls fn with every Manager right after it starts
func WithStartHook(fn func(*asyncsvc.Manager)) Option {
	return func(s *Service) {
		s.onStart = fn
	}
}

// New creates a supervised Service named name
func New(name string, factory Factory, opts ...Option) *Service {
	s := &Service{
		name:    name,
		factory: factory,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("supervised", name).Logger()
	return s
}

// Serve implements suture.Service. It returns suture.ErrDoNotRestart when
// the Manager finished cleanly, ctx.Err() when the supervisor is stopping,
// and the Manager's error otherwise.
func (s *Service) Serve(ctx context.Context) error {
	m, err := s.factory()
	if err != nil {
		return err
	}
	if err := m.Start(ctx); err != nil {
		return err
	}
	if s.onStart != nil {
		s.onStart(m)
	}

	err = m.WaitFinished(context.WithoutCancel(ctx))
	switch {
	case ctx.Err() != nil:
		s.log.Debug().Err(err).Msg("stopped by supervisor")
		return ctx.Err()
	case err != nil:
		s.log.Warn().Err(err).Msg("service failed; supervisor may restart it")
		return err
	default:
		s.log.Info().Msg("service finished; not restarting")
		return suture.ErrDoNotRestart
	}
}

// String names the service in supervisor events
func (s *Service) String() string {
	return s.name
}

// TreeConfig holds supervisor configuration
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for services to stop.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own defaults
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NewSupervisor creates a suture supervisor whose events are logged to
// logger. Zero fields of cfg take their DefaultTreeConfig values.
func NewSupervisor(name string, logger *slog.Logger, cfg TreeConfig) *suture.Supervisor {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	// MustHook has a pointer receiver
	handler := &sutureslog.Handler{Logger: logger}
	return suture.New(name, suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}
