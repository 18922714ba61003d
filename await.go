package asyncsvc

import (
	"context"
	"runtime"
	"time"
)

// Await suspends until event is closed or ctx is done, yielding to the
// runtime that scheduled the calling routine. Service code should use it
// instead of a bare channel receive so it behaves on every Runtime.
//
// Example:
//
//	// Wait for a signal or cancellation
//	if err := asyncsvc.Await(ctx, ready); err != nil {
//	    return err
//	}
func Await(ctx context.Context, event <-chan struct{}) error {
	if rt := RuntimeFromContext(ctx); rt != nil {
		return rt.Await(ctx, event)
	}
	return awaitEvent(ctx, event)
}

// Checkpoint yields to other routines and reports cancellation of ctx
func Checkpoint(ctx context.Context) error {
	if rt := RuntimeFromContext(ctx); rt != nil {
		return rt.Checkpoint(ctx)
	}
	runtime.Gosched()
	return ctx.Err()
}

// Sleep suspends for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return Checkpoint(ctx)
	}
	fired := make(chan struct{})
	timer := time.AfterFunc(d, func() { close(fired) })
	defer timer.Stop()
	return Await(ctx, fired)
}

// SleepForever suspends until ctx is done and returns ctx.Err()
func SleepForever(ctx context.Context) error {
	return Await(ctx, nil)
}

// awaitEvent is the plain blocking wait shared by the runtimes
func awaitEvent(ctx context.Context, event <-chan struct{}) error {
	// An already-closed event wins over an already-cancelled context.
	select {
	case <-event:
		return nil
	default:
	}

	select {
	case <-event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
