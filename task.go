package asyncsvc

import "context"

// TaskHandle refers to one task registered with a Manager
type TaskHandle struct {
	m      *Manager
	id     TaskID
	name   string
	daemon bool
	done   <-chan struct{}
}

// ID returns the task's registry id
func (h *TaskHandle) ID() TaskID { return h.id }

// Name returns the task's name
func (h *TaskHandle) Name() string { return h.name }

// Daemon reports whether the task was registered as a daemon
func (h *TaskHandle) Daemon() bool { return h.daemon }

// Done is closed once the task has finished and been counted
func (h *TaskHandle) Done() <-chan struct{} { return h.done }

// Cancel requests cancellation of this task alone. Cancelling a daemon task
// while its Manager is live fails the Manager.
func (h *TaskHandle) Cancel() {
	h.m.cancelTask(h.id)
}

// Wait waits for the task to finish and returns the error it failed with,
// or nil if it succeeded or was cancelled
func (h *TaskHandle) Wait(ctx context.Context) error {
	if err := h.m.runtime.Await(ctx, h.done); err != nil {
		return err
	}
	return h.m.taskInfo(h.id).Err
}

// Info returns a point-in-time view of the task
func (h *TaskHandle) Info() TaskInfo {
	return h.m.taskInfo(h.id)
}
