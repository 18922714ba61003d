package asyncsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 2 * time.Millisecond
)

type runtimeCase struct {
	name string
	new  func(t *testing.T) Runtime
}

func runtimeCases() []runtimeCase {
	return []runtimeCase{
		{"goroutine", func(*testing.T) Runtime { return NewGoroutineRuntime() }},
		{"stopper", func(t *testing.T) Runtime { return NewStopperRuntime(t.Context(), 100*time.Millisecond) }},
		{"loop", func(*testing.T) Runtime { return NewLoopRuntime() }},
	}
}

// forEachRuntime runs fn once per bundled runtime. newManager builds a
// Manager that owns a fresh runtime of the current kind.
func forEachRuntime(t *testing.T, fn func(t *testing.T, newManager func(Service, ...ManagerOption) *Manager)) {
	t.Helper()
	for _, rc := range runtimeCases() {
		t.Run(rc.name, func(t *testing.T) {
			fn(t, func(svc Service, opts ...ManagerOption) *Manager {
				return NewManager(svc, append([]ManagerOption{WithOwnedRuntime(rc.new(t))}, opts...)...)
			})
		})
	}
}

// waitFinished waits for m with the test timeout
func waitFinished(t *testing.T, m *Manager) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), testTimeout)
	defer cancel()
	err := m.WaitFinished(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "manager did not finish in time")
	return err
}

// waitClosed fails the test if ch is not closed within the test timeout
func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func requireStats(t *testing.T, m *Manager, want Stats) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Stats() == want
	}, testTimeout, testTick, "stats never settled at %+v (last %+v)", want, m.Stats())
}

func sleepForever(ctx context.Context) error {
	return SleepForever(ctx)
}

func checkpoint(ctx context.Context) error {
	return Checkpoint(ctx)
}
