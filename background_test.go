package asyncsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackground(t *testing.T) {
	for _, rc := range runtimeCases() {
		t.Run(rc.name, func(t *testing.T) {
			svc := ServiceFunc(func(ctx context.Context, m *Manager) error {
				if _, err := m.RunTask(sleepForever); err != nil {
					return err
				}
				return SleepForever(ctx)
			})

			var inside *Manager
			err := Background(t.Context(), svc, func(ctx context.Context, m *Manager) error {
				inside = m
				require.True(t, m.IsRunning())
				requireStats(t, m, Stats{TotalCount: 1, PendingCount: 1})
				return nil
			}, WithOwnedRuntime(rc.new(t)))
			require.NoError(t, err)

			// Nothing outlives the scope
			require.Equal(t, StateCancelled, inside.State())
			require.Equal(t, Stats{TotalCount: 1, FinishedCount: 1}, inside.Stats())
		})
	}
}

func TestBackgroundBodyError(t *testing.T) {
	bodyErr := errors.New("body failed")
	var inside *Manager
	err := Background(t.Context(), ServiceFunc(func(ctx context.Context, m *Manager) error {
		return SleepForever(ctx)
	}), func(ctx context.Context, m *Manager) error {
		inside = m
		return bodyErr
	})
	require.ErrorIs(t, err, bodyErr)
	require.True(t, inside.IsFinished())
}

func TestBackgroundServiceError(t *testing.T) {
	svcErr := errors.New("service failed")
	err := Background(t.Context(), ServiceFunc(func(context.Context, *Manager) error {
		return svcErr
	}), func(ctx context.Context, m *Manager) error {
		// Returning the Manager's own error must not report it twice
		return m.WaitFinished(ctx)
	})
	require.ErrorIs(t, err, svcErr)

	var merr *MultiError
	require.False(t, errors.As(err, &merr))
}

func TestBackgroundBothErrors(t *testing.T) {
	svcErr := errors.New("service failed")
	bodyErr := errors.New("body failed")

	err := Background(t.Context(), ServiceFunc(func(context.Context, *Manager) error {
		return svcErr
	}), func(ctx context.Context, m *Manager) error {
		_ = Await(ctx, m.Done())
		return bodyErr
	})

	var merr *MultiError
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 2)
	require.ErrorIs(t, err, bodyErr)
	require.ErrorIs(t, err, svcErr)
}

func TestBackgroundPanic(t *testing.T) {
	var inside *Manager
	require.PanicsWithValue(t, "body panicked", func() {
		_ = Background(t.Context(), ServiceFunc(func(ctx context.Context, m *Manager) error {
			return SleepForever(ctx)
		}), func(ctx context.Context, m *Manager) error {
			inside = m
			panic("body panicked")
		})
	})
	require.NotNil(t, inside)
	require.Equal(t, StateCancelled, inside.State())
}

func TestBackgroundCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	err := Background(ctx, ServiceFunc(func(ctx context.Context, m *Manager) error {
		return SleepForever(ctx)
	}), func(context.Context, *Manager) error {
		called = true
		return nil
	})
	// WaitStarted does not block on an already-started Manager
	require.NoError(t, err)
	require.True(t, called)
}

func TestRunService(t *testing.T) {
	ran := false
	require.NoError(t, RunService(t.Context(), ServiceFunc(func(ctx context.Context, m *Manager) error {
		ran = true
		_, err := m.RunTask(checkpoint)
		return err
	}), WithName("oneshot")))
	require.True(t, ran)

	boom := errors.New("boom")
	err := RunService(t.Context(), ServiceFunc(func(context.Context, *Manager) error { return boom }))
	require.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(t.Context())
	go cancel()
	require.NoError(t, RunService(ctx, ServiceFunc(func(ctx context.Context, m *Manager) error {
		return SleepForever(ctx)
	})))
}
