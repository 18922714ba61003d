package asyncsvc

// State represents the lifecycle state of a Manager.
//
// States only ever move forward:
//
//	NotStarted -> Started -> Running -> Finished
//	Started|Running -> Cancelling -> Cancelled
//
// Cancelling is the drain phase between a cancellation request and the moment
// the registry reports zero pending tasks. Finished and Cancelled are terminal.
type State int

const (
	// StateNotStarted indicates Start has not been called
	StateNotStarted State = iota
	// StateStarted indicates the root routine is scheduled but has not begun
	StateStarted
	// StateRunning indicates the root routine has begun executing
	StateRunning
	// StateCancelling indicates cancellation was requested and tasks are draining
	StateCancelling
	// StateCancelled indicates the Manager was cancelled and every task has completed
	StateCancelled
	// StateFinished indicates every task completed without cancellation
	StateFinished
)

// State string constants
const (
	stateNotStartedStr = "not-started"
	stateStartedStr    = "started"
	stateRunningStr    = "running"
	stateCancellingStr = "cancelling"
	stateCancelledStr  = "cancelled"
	stateFinishedStr   = "finished"
	stateUnknownStr    = "unknown"
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return stateNotStartedStr
	case StateStarted:
		return stateStartedStr
	case StateRunning:
		return stateRunningStr
	case StateCancelling:
		return stateCancellingStr
	case StateCancelled:
		return stateCancelledStr
	case StateFinished:
		return stateFinishedStr
	default:
		return stateUnknownStr
	}
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateFinished
}

// acceptsTasks reports whether RunTask is legal in this state
func (s State) acceptsTasks() bool {
	return s == StateStarted || s == StateRunning
}

// canAdvance reports whether moving from s to next is a legal forward transition
func (s State) canAdvance(next State) bool {
	switch s {
	case StateNotStarted:
		// Stop on a never-started Manager goes straight to Cancelled.
		return next == StateStarted || next == StateCancelled
	case StateStarted:
		return next == StateRunning || next == StateCancelling
	case StateRunning:
		return next == StateCancelling || next == StateFinished
	case StateCancelling:
		return next == StateCancelled
	default:
		return false
	}
}
