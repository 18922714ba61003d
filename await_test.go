package asyncsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAwait(t *testing.T) {
	closed := make(chan struct{})
	close(closed)

	cancelled, cancel := context.WithCancel(t.Context())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		event   <-chan struct{}
		wantErr error
	}{
		{"closed event", t.Context(), closed, nil},
		{"closed event wins over cancelled context", cancelled, closed, nil},
		{"nil event waits for context", cancelled, nil, context.Canceled},
		{"open event, cancelled context", cancelled, make(chan struct{}), context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Await(tt.ctx, tt.event)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(t.Context(), 20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, Sleep(t.Context(), 0))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.DeadlineExceeded)
	require.ErrorIs(t, SleepForever(ctx), context.DeadlineExceeded)
}

func TestCheckpoint(t *testing.T) {
	require.NoError(t, Checkpoint(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, Checkpoint(ctx), context.Canceled)
}

func TestRuntimeFromContext(t *testing.T) {
	require.Nil(t, RuntimeFromContext(t.Context()))

	rt := NewGoroutineRuntime()
	require.Same(t, rt, RuntimeFromContext(withRuntime(t.Context(), rt)))
}
