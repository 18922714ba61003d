package asyncsvc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager supervises one Service: it runs the Service's root routine, tracks
// every task registered through it, and guarantees that a failure anywhere
// cancels everything and surfaces at WaitFinished.
//
// It is safe for concurrent use. A Manager is single-use: once it reaches a
// terminal state it cannot be restarted.
type Manager struct {
	id          uuid.UUID
	name        string
	service     Service
	runtime     Runtime
	ownsRuntime bool
	baseLog     zerolog.Logger
	log         zerolog.Logger

	mu         sync.Mutex
	state      State
	everRan    bool
	registry   registry
	err        error
	rootDone   bool
	rootHandle Handle
	ctx        context.Context
	cancel     context.CancelFunc
	stopWatch  func() bool

	started  chan struct{}
	finished chan struct{}

	closeOnce sync.Once
}

// NewManager wraps svc in a new Manager in StateNotStarted
func NewManager(svc Service, opts ...ManagerOption) *Manager {
	if svc == nil {
		panic("asyncsvc: NewManager called with nil Service")
	}
	m := &Manager{
		id:       uuid.New(),
		name:     DefaultManagerName,
		service:  svc,
		baseLog:  zerolog.Nop(),
		started:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.runtime == nil {
		m.runtime = NewGoroutineRuntime()
		m.ownsRuntime = true
	}
	m.log = m.baseLog.With().
		Str("manager", m.name).
		Str("manager_id", m.id.String()).
		Logger()
	return m
}

// ID returns the Manager's unique identity
func (m *Manager) ID() uuid.UUID {
	return m.id
}

// Name returns the Manager's name
func (m *Manager) Name() string {
	return m.name
}

// Runtime returns the Runtime the Manager schedules routines on
func (m *Manager) Runtime() Runtime {
	return m.runtime
}

// Start schedules the Service's root routine and moves the Manager to
// StateStarted; StateRunning follows once the routine begins executing.
//
// Start is not idempotent: a second call returns an *OpError wrapping
// ErrLifecycle. Cancelling ctx later is equivalent to calling Stop.
// If ctx is nil, it is treated as context.Background().
func (m *Manager) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateNotStarted {
		return m.opErrorLocked(OpStart)
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.everRan = true
	m.advanceLocked(StateStarted)
	close(m.started)

	m.rootHandle = m.runtime.Spawn(m.ctx, m.runRoot)
	m.stopWatch = context.AfterFunc(ctx, m.Stop)
	return nil
}

// RunTask registers fn as a new pending task and schedules it. It never
// blocks the caller. RunTask is legal only in StateStarted and StateRunning;
// otherwise it returns an *OpError wrapping ErrLifecycle.
func (m *Manager) RunTask(fn TaskFunc, opts ...TaskOption) (*TaskHandle, error) {
	if fn == nil {
		panic("asyncsvc: RunTask called with nil TaskFunc")
	}
	return m.spawnTask(OpRunTask, newTaskConfig(fn, opts), fn)
}

// RunDaemonTask is RunTask with AsDaemon
func (m *Manager) RunDaemonTask(fn TaskFunc, opts ...TaskOption) (*TaskHandle, error) {
	return m.RunTask(fn, append(opts, AsDaemon())...)
}

// WaitStarted waits until Start has been called. It returns an *OpError
// wrapping ErrLifecycle if the Manager was stopped before it ever started.
func (m *Manager) WaitStarted(ctx context.Context) error {
	if err := m.runtime.Await(ctx, m.started); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.everRan {
		return m.opErrorLocked(OpWaitStarted)
	}
	return nil
}

// WaitFinished waits until the Manager is terminal and every task,
// including the root routine, has returned. It returns the first error
// recorded by the Manager, or ctx.Err() if ctx ends first.
func (m *Manager) WaitFinished(ctx context.Context) error {
	if err := m.runtime.Await(ctx, m.finished); err != nil {
		return err
	}
	m.closeRuntime()
	return m.Err()
}

// Done is closed once WaitFinished would return without blocking
func (m *Manager) Done() <-chan struct{} {
	return m.finished
}

// Stop requests cancellation of the root routine and every task. It does
// not block and is safe to call any number of times. Stopping a Manager
// that was never started moves it straight to StateCancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateNotStarted:
		m.advanceLocked(StateCancelled)
		// Release WaitStarted callers; everRan stays false.
		close(m.started)
		m.finishLocked()
	case StateStarted, StateRunning:
		m.log.Info().Msg("stop requested")
		m.cancelLocked()
		m.maybeFinishLocked()
	}
}

// Shutdown stops the Manager and waits for it to finish
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Stop()
	return m.WaitFinished(ctx)
}

// Err returns the first error recorded by the Manager, if any
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning reports whether the Manager currently accepts tasks
func (m *Manager) IsRunning() bool {
	return m.State().acceptsTasks()
}

// IsCancelled reports whether cancellation was requested, drained or not
func (m *Manager) IsCancelled() bool {
	st := m.State()
	return st == StateCancelling || st == StateCancelled
}

// IsFinished reports whether the Manager reached a terminal state
func (m *Manager) IsFinished() bool {
	return m.State().IsTerminal()
}

// Stats returns a consistent point-in-time snapshot of the task counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.stats()
}

// Snapshot returns a point-in-time view of every registered task
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.snapshot()
}

//// routines

func (m *Manager) runRoot(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateStarted {
		m.advanceLocked(StateRunning)
	}
	m.mu.Unlock()

	err := runProtected(ctx, func(ctx context.Context) error {
		return m.service.Run(ctx, m)
	})
	outcome := classify(ctx, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rootDone = true
	m.log.Debug().Str("task", RootTaskName).Str("outcome", outcome.String()).Msg("root routine returned")
	if outcome == OutcomeFailed {
		m.failLocked(&TaskError{Task: RootTaskName, ID: rootTaskID, Err: err})
	}
	m.maybeFinishLocked()
}

func (m *Manager) spawnTask(op Operation, cfg taskConfig, fn TaskFunc) (*TaskHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.acceptsTasks() {
		return nil, m.opErrorLocked(op)
	}
	e := m.registry.register(cfg.name, cfg.daemon, time.Now())
	id := e.info.ID
	e.handle = m.runtime.Spawn(m.ctx, func(ctx context.Context) {
		err := runProtected(ctx, fn)
		m.completeTask(ctx, id, err)
	})
	m.log.Debug().
		Str("task", cfg.name).
		Int("task_id", int(id)).
		Bool("daemon", cfg.daemon).
		Msg("task registered")

	return &TaskHandle{
		m:      m,
		id:     id,
		name:   cfg.name,
		daemon: cfg.daemon,
		done:   e.done,
	}, nil
}

func (m *Manager) completeTask(ctx context.Context, id TaskID, err error) {
	outcome := classify(ctx, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.finish(id, outcome, err, time.Now()) {
		return
	}
	info := m.registry.get(id).info
	log := m.log.With().
		Str("task", info.Name).
		Int("task_id", int(id)).
		Bool("daemon", info.Daemon).
		Logger()
	log.Debug().Str("outcome", outcome.String()).Msg("task finished")

	switch {
	case info.Daemon && !m.cancelRequestedLocked():
		cause := err
		if outcome != OutcomeFailed {
			cause = ErrDaemonTaskExit
		}
		log.Warn().Err(cause).Msg("daemon task exited while service was live")
		m.failLocked(&TaskError{Task: info.Name, ID: id, Daemon: true, Err: cause})
	case outcome == OutcomeFailed:
		m.failLocked(&TaskError{Task: info.Name, ID: id, Daemon: info.Daemon, Err: err})
	}
	m.maybeFinishLocked()
}

func (m *Manager) cancelTask(id TaskID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.registry.get(id)
	if e == nil || e.info.Outcome != OutcomePending {
		return
	}
	m.log.Debug().Str("task", e.info.Name).Int("task_id", int(id)).Msg("task cancel requested")
	e.handle.Cancel()
}

func (m *Manager) taskInfo(id TaskID) TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.registry.get(id); e != nil {
		return e.info
	}
	return TaskInfo{ID: id, Outcome: OutcomePending}
}

//// state transitions; all called with mu held

func (m *Manager) advanceLocked(next State) bool {
	if !m.state.canAdvance(next) {
		return false
	}
	m.log.Debug().Str("from", m.state.String()).Str("to", next.String()).Msg("state transition")
	m.state = next
	return true
}

func (m *Manager) cancelRequestedLocked() bool {
	return m.state == StateCancelling || m.state == StateCancelled
}

// failLocked records err if it is the first one and cancels the Manager.
// Later errors are logged and discarded.
func (m *Manager) failLocked(err error) {
	if m.err == nil {
		m.err = err
		m.log.Error().Err(err).Msg("service failed")
	} else {
		m.log.Warn().Err(err).Msg("discarding error after first failure")
	}
	m.cancelLocked()
}

func (m *Manager) cancelLocked() {
	if !m.advanceLocked(StateCancelling) {
		return
	}
	m.cancel()
	for _, e := range m.registry.pending() {
		e.handle.Cancel()
	}
	if m.rootHandle != nil && !m.rootDone {
		m.rootHandle.Cancel()
	}
}

// maybeFinishLocked moves to a terminal state once the root routine has
// returned and the registry has no pending tasks
func (m *Manager) maybeFinishLocked() {
	if m.state.IsTerminal() || !m.rootDone || m.registry.stats().PendingCount > 0 {
		return
	}
	next := StateFinished
	if m.state == StateCancelling {
		next = StateCancelled
	}
	m.advanceLocked(next)
	m.finishLocked()
}

func (m *Manager) finishLocked() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.stopWatch != nil {
		m.stopWatch()
	}
	close(m.finished)

	stats := m.registry.stats()
	m.log.Info().
		Str("state", m.state.String()).
		Int("total", stats.TotalCount).
		Int("finished", stats.FinishedCount).
		AnErr("error", m.err).
		Msg("service finished")
}

func (m *Manager) opErrorLocked(op Operation) error {
	return &OpError{Op: op, Service: m.name, State: m.state, Err: ErrLifecycle}
}

func (m *Manager) closeRuntime() {
	if !m.ownsRuntime {
		return
	}
	m.closeOnce.Do(func() {
		if err := m.runtime.Close(); err != nil {
			m.log.Warn().Err(err).Msg("closing runtime")
		}
	})
}

//// helpers

// runProtected runs fn, converting a panic into an error wrapping ErrTaskPanic
func runProtected(ctx context.Context, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = coerceToError(r)
		}
	}()
	return fn(ctx)
}

// classify decides how a routine ended. Returning the context's own
// cancellation error after the context was cancelled is a cancellation,
// not a failure.
func classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}
