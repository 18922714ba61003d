package asyncsvc

import "context"

// Runtime is the host concurrency runtime a Manager schedules routines on.
// Implementations provide a unified API for spawning, suspending and
// cancelling routines so that Manager logic never depends on how routines
// are actually interleaved.
type Runtime interface {
	// Spawn schedules routine to run concurrently and returns immediately.
	// The routine receives a context derived from ctx that is cancelled
	// when the returned Handle is cancelled. Spawn must eventually invoke
	// routine exactly once, even if the runtime is shutting down.
	Spawn(ctx context.Context, routine func(ctx context.Context)) Handle

	// Await suspends the calling routine until event is closed or ctx is
	// done. A nil event waits for ctx only. Returns ctx.Err() when ctx won.
	Await(ctx context.Context, event <-chan struct{}) error

	// Checkpoint is a cooperative yield: other routines may run before it
	// returns. It returns ctx.Err() so callers can observe cancellation.
	Checkpoint(ctx context.Context) error

	// Close waits until every spawned routine has returned
	Close() error
}

// Handle refers to one routine scheduled by a Runtime
type Handle interface {
	// Cancel requests cancellation. It is advisory: the routine observes it
	// at its next suspension point.
	Cancel()

	// Done is closed once the routine has returned
	Done() <-chan struct{}
}

type runtimeKey struct{}

// withRuntime records rt in ctx so package-level helpers can find it
func withRuntime(ctx context.Context, rt Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFromContext returns the Runtime that scheduled the routine owning
// ctx, or nil when ctx does not belong to a spawned routine
func RuntimeFromContext(ctx context.Context) Runtime {
	rt, _ := ctx.Value(runtimeKey{}).(Runtime)
	return rt
}

// routineHandle is the Handle shared by the bundled runtimes
type routineHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newRoutine(ctx context.Context, rt Runtime) (context.Context, *routineHandle) {
	ctx, cancel := context.WithCancel(withRuntime(ctx, rt))
	return ctx, &routineHandle{cancel: cancel, done: make(chan struct{})}
}

func (h *routineHandle) Cancel() {
	h.cancel()
}

func (h *routineHandle) Done() <-chan struct{} {
	return h.done
}

// finish marks the routine as returned and releases its context
func (h *routineHandle) finish() {
	h.cancel()
	close(h.done)
}
