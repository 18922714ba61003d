package asyncsvc

import "time"

// Naming and timing defaults
const (
	// RootTaskName is the name used for a Service's Run routine in logs and errors
	RootTaskName = "run"

	// DefaultManagerName is used when no WithName option is given
	DefaultManagerName = "service"

	// DefaultStopGrace is the grace period the stopper runtime allows routines
	// to observe a stop before their contexts are hard-cancelled
	DefaultStopGrace = 5 * time.Second
)

// Operation identifies a Manager operation, used to attribute lifecycle errors
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpStart schedules the Service's root routine
	OpStart
	// OpRunTask registers and schedules a task
	OpRunTask
	// OpRunChildService registers a nested Manager as a task
	OpRunChildService
	// OpStop requests cancellation
	OpStop
	// OpWaitStarted waits for the STARTED state
	OpWaitStarted
	// OpWaitFinished waits for a drained terminal state
	OpWaitFinished
)

// Operation string constants
const (
	opUnknownStr         = "unknown"
	opStartStr           = "start"
	opRunTaskStr         = "run-task"
	opRunChildServiceStr = "run-child-service"
	opStopStr            = "stop"
	opWaitStartedStr     = "wait-started"
	opWaitFinishedStr    = "wait-finished"
)

// String returns the string representation of an Operation
func (op Operation) String() string {
	switch op {
	case OpStart:
		return opStartStr
	case OpRunTask:
		return opRunTaskStr
	case OpRunChildService:
		return opRunChildServiceStr
	case OpStop:
		return opStopStr
	case OpWaitStarted:
		return opWaitStartedStr
	case OpWaitFinished:
		return opWaitFinishedStr
	default:
		return opUnknownStr
	}
}
