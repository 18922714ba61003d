package asyncsvc

import (
	"context"
	"sync"
)

// LoopRuntime is a single-queue event loop. Every routine gets a goroutine,
// but only the holder of the loop's baton executes; the baton is handed to
// the longest-waiting routine whenever the holder suspends in Await or
// Checkpoint, or returns. The effect is one logical thread of cooperative
// execution with no preemption.
//
// Routines on a LoopRuntime must suspend through Await, Checkpoint, Sleep or
// SleepForever (or the Manager's Wait* methods). A bare blocking channel
// receive keeps the baton and stalls every other routine. A routine's
// context must not be handed to goroutines the routine starts itself.
type LoopRuntime struct {
	// baton has capacity one; holding a value in it means executing.
	// Blocked senders queue in arrival order, so a release hands the baton
	// straight to the first waiter.
	baton chan struct{}
	wg    sync.WaitGroup
}

var _ Runtime = (*LoopRuntime)(nil)

type loopHolderKey struct{}

// NewLoopRuntime creates a single-queue event loop runtime
func NewLoopRuntime() *LoopRuntime {
	return &LoopRuntime{baton: make(chan struct{}, 1)}
}

// Spawn implements Runtime
func (l *LoopRuntime) Spawn(ctx context.Context, routine func(ctx context.Context)) Handle {
	rctx, h := newRoutine(ctx, l)
	rctx = context.WithValue(rctx, loopHolderKey{}, l)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer h.finish()

		l.acquire()
		defer l.release()
		routine(rctx)
	}()
	return h
}

// Await implements Runtime. Called from outside a loop routine it is a
// plain blocking wait.
func (l *LoopRuntime) Await(ctx context.Context, event <-chan struct{}) error {
	if !l.holds(ctx) {
		return awaitEvent(ctx, event)
	}

	select {
	case <-event:
		return nil
	default:
	}

	l.release()
	defer l.acquire()
	return awaitEvent(ctx, event)
}

// Checkpoint implements Runtime
func (l *LoopRuntime) Checkpoint(ctx context.Context) error {
	if l.holds(ctx) {
		l.release()
		l.acquire()
	}
	return ctx.Err()
}

// Close implements Runtime
func (l *LoopRuntime) Close() error {
	l.wg.Wait()
	return nil
}

func (l *LoopRuntime) holds(ctx context.Context) bool {
	holder, _ := ctx.Value(loopHolderKey{}).(*LoopRuntime)
	return holder == l
}

func (l *LoopRuntime) acquire() {
	l.baton <- struct{}{}
}

func (l *LoopRuntime) release() {
	<-l.baton
}
