package workload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/axondata/go-asyncsvc"
	"github.com/axondata/go-asyncsvc/internal/report"
)

const (
	testTimeout = 5 * time.Second
	testTick    = 10 * time.Millisecond
)

func runtimes() map[string]func() asyncsvc.Runtime {
	return map[string]func() asyncsvc.Runtime{
		"goroutine": func() asyncsvc.Runtime { return asyncsvc.NewGoroutineRuntime() },
		"loop":      func() asyncsvc.Runtime { return asyncsvc.NewLoopRuntime() },
	}
}

func TestWorkersAndReports(t *testing.T) {
	for name, newRuntime := range runtimes() {
		t.Run(name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)
			reportPath := filepath.Join(t.TempDir(), "stats.json")

			svc := New(Options{
				Workers:        2,
				Tick:           5 * time.Millisecond,
				ReportPath:     reportPath,
				ReportInterval: 5 * time.Millisecond,
			}, metrics)
			m := asyncsvc.NewManager(svc, asyncsvc.WithName("demo"), asyncsvc.WithOwnedRuntime(newRuntime()))
			require.NoError(t, m.Start(t.Context()))

			require.Eventually(t, func() bool {
				return testutil.ToFloat64(metrics.Jobs) >= 4
			}, testTimeout, testTick)
			require.Eventually(t, func() bool {
				r, err := report.Read(reportPath)
				return err == nil && r.Stats.TotalCount > 3
			}, testTimeout, testTick)

			m.Stop()
			require.NoError(t, m.WaitFinished(t.Context()))
			require.Equal(t, asyncsvc.StateCancelled, m.State())

			stats := m.Stats()
			require.Zero(t, stats.PendingCount)
			require.Equal(t, stats.TotalCount, stats.FinishedCount)

			r, err := report.Read(reportPath)
			require.NoError(t, err)
			require.Equal(t, "demo", r.Manager)
			require.Positive(t, testutil.ToFloat64(metrics.Writes))
		})
	}
}

func TestConfigChangeEndsService(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "asyncsvcd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workers: 1\n"), 0o644))

	svc := New(Options{Tick: time.Hour, WatchPath: cfgPath}, nil)
	m := asyncsvc.NewManager(svc)
	require.NoError(t, m.Start(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), testTimeout)
	defer cancel()

	// Rewrite until the watcher, which starts asynchronously, notices
	var err error
	require.Eventually(t, func() bool {
		_ = os.WriteFile(cfgPath, []byte("workers: 2\n"), 0o644)
		select {
		case <-m.Done():
			err = m.WaitFinished(ctx)
			return true
		default:
			return false
		}
	}, testTimeout, 200*time.Millisecond)
	require.ErrorIs(t, err, asyncsvc.ErrDaemonTaskExit)

	var te *asyncsvc.TaskError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "config-watch", te.Task)
	require.True(t, te.Daemon)
}

func TestMetricsListenFailure(t *testing.T) {
	svc := New(Options{MetricsListen: "not-an-address"}, nil)
	err := asyncsvc.RunService(t.Context(), svc)
	require.ErrorContains(t, err, "metrics listen")

	var te *asyncsvc.TaskError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "metrics", te.Task)
}
