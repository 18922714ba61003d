package asyncsvc

import (
	"context"
	"runtime"
	"sync"
	"time"

	"vawter.tech/stopper"
)

// StopperRuntime runs routines as goroutines tracked by a stopper context.
// Close stops the stopper with a grace period: routines see their contexts
// cancelled as soon as the stop begins and Close waits for all of them.
type StopperRuntime struct {
	sctx  *stopper.Context
	grace time.Duration

	// mu orders Spawn against Close so a routine is never handed to a
	// stopper that has already begun stopping.
	mu       sync.Mutex
	detached sync.WaitGroup
}

var _ Runtime = (*StopperRuntime)(nil)

// NewStopperRuntime creates a parallel runtime backed by vawter.tech/stopper.
// Values of ctx are visible to routines; its cancellation is not, since the
// Manager forwards cancellation itself. A non-positive grace uses DefaultStopGrace.
func NewStopperRuntime(ctx context.Context, grace time.Duration) *StopperRuntime {
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &StopperRuntime{
		sctx:  stopper.WithContext(context.WithoutCancel(ctx)),
		grace: grace,
	}
}

// Spawn implements Runtime
func (r *StopperRuntime) Spawn(ctx context.Context, routine func(ctx context.Context)) Handle {
	rctx, h := newRoutine(ctx, r)
	run := func() {
		defer h.finish()
		routine(rctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sctx.IsStopping() {
		// Too late for the stopper; the routine still runs exactly once,
		// with its context already cancelled.
		h.Cancel()
		r.detached.Add(1)
		go func() {
			defer r.detached.Done()
			run()
		}()
		return h
	}

	r.sctx.Go(func(sctx *stopper.Context) error {
		// Forward a stopper stop into the routine's own context
		go func() {
			select {
			case <-sctx.Stopping():
				h.Cancel()
			case <-h.done:
			}
		}()
		run()
		return nil
	})
	return h
}

// Await implements Runtime
func (r *StopperRuntime) Await(ctx context.Context, event <-chan struct{}) error {
	return awaitEvent(ctx, event)
}

// Checkpoint implements Runtime
func (r *StopperRuntime) Checkpoint(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// Stopping is closed once Close has begun stopping the runtime
func (r *StopperRuntime) Stopping() <-chan struct{} {
	return r.sctx.Stopping()
}

// Close implements Runtime. It is safe to call more than once.
func (r *StopperRuntime) Close() error {
	r.mu.Lock()
	r.sctx.Stop(r.grace)
	r.mu.Unlock()

	err := r.sctx.Wait()
	r.detached.Wait()
	return err
}
