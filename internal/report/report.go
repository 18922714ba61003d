// Package report writes Manager stats snapshots to disk for external
// monitoring. Files are replaced atomically, so a reader never observes a
// partial report.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/axondata/go-asyncsvc"
)

// FileMode is the permission of written report files
const FileMode = 0o644

// Report is the on-disk form of one Manager snapshot
type Report struct {
	Manager string         `json:"manager"`
	ID      string         `json:"id"`
	State   string         `json:"state"`
	Stats   asyncsvc.Stats `json:"stats"`
	Tasks   []TaskSummary  `json:"tasks,omitempty"`
	Error   string         `json:"error,omitempty"`
	Time    time.Time      `json:"time"`
}

// TaskSummary is the on-disk form of one task
type TaskSummary struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Daemon  bool   `json:"daemon,omitempty"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Build captures the current state of m. Pending tasks are listed only
// when withTasks is set, to keep periodic reports small.
func Build(m *asyncsvc.Manager, withTasks bool, now time.Time) Report {
	snap := m.Snapshot()
	r := Report{
		Manager: m.Name(),
		ID:      m.ID().String(),
		State:   m.State().String(),
		Stats:   snap.Stats,
		Time:    now.UTC(),
	}
	if err := m.Err(); err != nil {
		r.Error = err.Error()
	}
	if withTasks {
		r.Tasks = make([]TaskSummary, 0, len(snap.Tasks))
		for _, t := range snap.Tasks {
			s := TaskSummary{
				ID:      int(t.ID),
				Name:    t.Name,
				Daemon:  t.Daemon,
				Outcome: t.Outcome.String(),
			}
			if t.Err != nil {
				s.Error = t.Err.Error()
			}
			r.Tasks = append(r.Tasks, s)
		}
	}
	return r
}

// Write atomically replaces the file at path with r encoded as JSON
func Write(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}

// Read decodes the report at path
func Read(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decoding report %s: %w", path, err)
	}
	return r, nil
}
