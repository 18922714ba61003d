package asyncsvc

import "context"

// Service is an asynchronous unit of work supervised by a Manager.
//
// Run is the Service's root routine. It receives the Manager that owns it and
// may register further tasks through it. Returning a non-nil error cancels the
// Manager and every task it tracks.
type Service interface {
	Run(ctx context.Context, m *Manager) error
}

// ServiceFunc adapts a plain function to the Service interface
type ServiceFunc func(ctx context.Context, m *Manager) error

// Run calls f(ctx, m)
func (f ServiceFunc) Run(ctx context.Context, m *Manager) error {
	return f(ctx, m)
}

// TaskFunc is the work executed by a task registered with RunTask
type TaskFunc func(ctx context.Context) error
