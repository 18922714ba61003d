package asyncsvc

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithName sets the name used in logs, errors and metrics
func WithName(name string) ManagerOption {
	return func(m *Manager) {
		if name = strings.TrimSpace(name); name != "" {
			m.name = name
		}
	}
}

// WithRuntime schedules the Manager's routines on rt instead of a private
// GoroutineRuntime. The caller owns rt and is responsible for closing it.
func WithRuntime(rt Runtime) ManagerOption {
	return func(m *Manager) {
		if rt != nil {
			m.runtime = rt
			m.ownsRuntime = false
		}
	}
}

// WithOwnedRuntime is WithRuntime, except that the Manager takes ownership
// of rt and closes it in WaitFinished
func WithOwnedRuntime(rt Runtime) ManagerOption {
	return func(m *Manager) {
		if rt != nil {
			m.runtime = rt
			m.ownsRuntime = true
		}
	}
}

// WithLogger sets the logger for lifecycle and task events.
// The default discards everything.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.baseLog = logger
	}
}

// TaskOption configures a task registered with RunTask
type TaskOption func(*taskConfig)

type taskConfig struct {
	name   string
	daemon bool
}

// WithTaskName sets the task name used in logs, errors and snapshots.
// The default is the name of the task function.
func WithTaskName(name string) TaskOption {
	return func(c *taskConfig) {
		c.name = strings.TrimSpace(name)
	}
}

// AsDaemon marks the task as a daemon: it is expected to run for the whole
// life of the Manager, and its completion while the Manager is live is fatal.
func AsDaemon() TaskOption {
	return func(c *taskConfig) {
		c.daemon = true
	}
}

func newTaskConfig(fn TaskFunc, opts []TaskOption) taskConfig {
	var cfg taskConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.name == "" {
		cfg.name = funcName(fn)
	}
	return cfg
}

// funcName derives a readable name from a function value
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return fmt.Sprintf("task@%#x", pc)
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
