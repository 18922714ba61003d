package asyncsvc

import "time"

// TaskID is the index of a task in its Manager's registry
type TaskID int

// rootTaskID identifies the Service's Run routine, which is not a registry entry
const rootTaskID TaskID = -1

// Outcome describes how a finished task ended
type Outcome int

const (
	// OutcomePending indicates the task has not finished
	OutcomePending Outcome = iota
	// OutcomeSucceeded indicates the task returned nil
	OutcomeSucceeded
	// OutcomeFailed indicates the task returned an error or panicked
	OutcomeFailed
	// OutcomeCancelled indicates the task ended because its context was cancelled
	OutcomeCancelled
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of a Manager's task counters.
// TotalCount == FinishedCount + PendingCount always holds, and TotalCount
// and FinishedCount never decrease over a Manager's life. The Service's Run
// routine is not counted.
type Stats struct {
	TotalCount    int `json:"total_count"`
	FinishedCount int `json:"finished_count"`
	PendingCount  int `json:"pending_count"`
}

// TaskInfo is a point-in-time view of one task
type TaskInfo struct {
	ID       TaskID
	Name     string
	Daemon   bool
	Outcome  Outcome
	Started  time.Time
	Finished time.Time // zero while pending
	Err      error     // set when Outcome is OutcomeFailed
}

// Snapshot is a point-in-time view of every task a Manager ever registered,
// in registration order
type Snapshot struct {
	Stats Stats
	Tasks []TaskInfo
}

// Get returns the first task with the given name
func (s Snapshot) Get(name string) (TaskInfo, bool) {
	for _, t := range s.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskInfo{}, false
}

// taskEntry is the registry's record of one task
type taskEntry struct {
	info   TaskInfo
	handle Handle
	done   chan struct{}
}

// registry is the sole source of truth for task bookkeeping. It is not
// safe for concurrent use; the owning Manager serializes access with its
// mutex so registration, completion and snapshots are atomic to each other.
type registry struct {
	entries  []*taskEntry
	finished int
}

// register inserts a new pending task and returns its id
func (r *registry) register(name string, daemon bool, now time.Time) *taskEntry {
	e := &taskEntry{
		info: TaskInfo{
			ID:      TaskID(len(r.entries)),
			Name:    name,
			Daemon:  daemon,
			Outcome: OutcomePending,
			Started: now,
		},
		done: make(chan struct{}),
	}
	r.entries = append(r.entries, e)
	return e
}

// get returns the entry for id, or nil if id was never registered
func (r *registry) get(id TaskID) *taskEntry {
	if id < 0 || int(id) >= len(r.entries) {
		return nil
	}
	return r.entries[id]
}

// finish marks id as finished. A second call for the same id is ignored
// and reports false, so counts are never duplicated.
func (r *registry) finish(id TaskID, outcome Outcome, err error, now time.Time) bool {
	e := r.get(id)
	if e == nil || e.info.Outcome != OutcomePending {
		return false
	}
	e.info.Outcome = outcome
	e.info.Finished = now
	if outcome == OutcomeFailed {
		e.info.Err = err
	}
	r.finished++
	close(e.done)
	return true
}

// pending returns the entries that have not finished
func (r *registry) pending() []*taskEntry {
	var out []*taskEntry
	for _, e := range r.entries {
		if e.info.Outcome == OutcomePending {
			out = append(out, e)
		}
	}
	return out
}

func (r *registry) stats() Stats {
	total := len(r.entries)
	return Stats{
		TotalCount:    total,
		FinishedCount: r.finished,
		PendingCount:  total - r.finished,
	}
}

func (r *registry) snapshot() Snapshot {
	tasks := make([]TaskInfo, 0, len(r.entries))
	for _, e := range r.entries {
		tasks = append(tasks, e.info)
	}
	return Snapshot{Stats: r.stats(), Tasks: tasks}
}
