package asyncsvc

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// GoroutineRuntime runs every routine on its own goroutine. It is the
// default Runtime of a Manager. The zero value is not usable; call
// NewGoroutineRuntime.
type GoroutineRuntime struct {
	eg *errgroup.Group
}

var _ Runtime = (*GoroutineRuntime)(nil)

// NewGoroutineRuntime creates a parallel runtime backed by an errgroup
func NewGoroutineRuntime() *GoroutineRuntime {
	return &GoroutineRuntime{eg: new(errgroup.Group)}
}

// Spawn implements Runtime
func (r *GoroutineRuntime) Spawn(ctx context.Context, routine func(ctx context.Context)) Handle {
	rctx, h := newRoutine(ctx, r)
	r.eg.Go(func() error {
		defer h.finish()
		routine(rctx)
		return nil
	})
	return h
}

// Await implements Runtime
func (r *GoroutineRuntime) Await(ctx context.Context, event <-chan struct{}) error {
	return awaitEvent(ctx, event)
}

// Checkpoint implements Runtime
func (r *GoroutineRuntime) Checkpoint(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}

// Close implements Runtime
func (r *GoroutineRuntime) Close() error {
	return r.eg.Wait()
}
