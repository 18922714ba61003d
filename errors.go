package asyncsvc

import (
	"errors"
	"fmt"
)

// Error kinds returned by Manager operations. ErrLifecycle and
// ErrDaemonTaskExit both match ErrService with errors.Is.
var (
	// ErrService is the base kind every error raised by this package matches
	ErrService = errors.New("asyncsvc: service error")

	// ErrLifecycle indicates an operation that is illegal in the Manager's current state
	ErrLifecycle error = &kindError{msg: "asyncsvc: lifecycle violation", parent: ErrService}

	// ErrDaemonTaskExit indicates a daemon task ended while the Manager was still live
	ErrDaemonTaskExit error = &kindError{msg: "asyncsvc: daemon task exited", parent: ErrService}

	// ErrTaskPanic indicates a task panicked; the panic was recovered and converted
	ErrTaskPanic error = &kindError{msg: "asyncsvc: task panicked", parent: ErrService}
)

// kindError is a sentinel that also matches its parent kind
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.parent
}

// OpError represents an operation rejected by the lifecycle rules
type OpError struct {
	// Op is the operation that was attempted
	Op Operation
	// Service is the name of the Manager the operation was attempted on
	Service string
	// State is the lifecycle state observed when the operation was rejected
	State State
	// Err is the underlying error kind, usually ErrLifecycle
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("asyncsvc %s %q (state %s): %v", e.Op.String(), e.Service, e.State.String(), e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// TaskError attributes a failure to the task that produced it
type TaskError struct {
	// Task is the task name (RootTaskName for the Service's Run routine)
	Task string
	// ID is the registry index of the task, -1 for the root routine
	ID TaskID
	// Daemon reports whether the task was registered as a daemon
	Daemon bool
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *TaskError) Error() string {
	kind := "task"
	if e.Daemon {
		kind = "daemon task"
	}
	return fmt.Sprintf("asyncsvc %s %q: %v", kind, e.Task, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TaskError) Unwrap() error {
	return e.Err
}

// MultiError aggregates errors that surface at the same waiting point
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %v", len(m.Errors), m.Errors[0])
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Err returns nil if no errors occurred, the single error if there is exactly
// one, otherwise the MultiError itself
func (m *MultiError) Err() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// coerceToError compensates for recover() returning a wildcard type
func coerceToError(rcvr any) error {
	if rcvr == nil {
		return nil
	}
	if cast, ok := rcvr.(error); ok {
		return fmt.Errorf("%w: %w", ErrTaskPanic, cast)
	}
	return fmt.Errorf("%w: %T: %v", ErrTaskPanic, rcvr, rcvr)
}
