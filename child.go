package asyncsvc

import (
	"context"
	"fmt"
)

// RunChildService runs svc under a new child Manager, itself registered as
// a task of m. The child shares m's runtime and is stopped when m is
// cancelled. A child failure fails m.
func (m *Manager) RunChildService(svc Service, opts ...ManagerOption) (*Manager, error) {
	return m.runChild(OpRunChildService, svc, false, opts)
}

// RunDaemonChildService is RunChildService where the child is a daemon task:
// the child finishing for any reason while m is live fails m.
func (m *Manager) RunDaemonChildService(svc Service, opts ...ManagerOption) (*Manager, error) {
	return m.runChild(OpRunChildService, svc, true, opts)
}

func (m *Manager) runChild(op Operation, svc Service, daemon bool, opts []ManagerOption) (*Manager, error) {
	if svc == nil {
		panic("asyncsvc: RunChildService called with nil Service")
	}

	m.mu.Lock()
	seq := m.registry.stats().TotalCount
	m.mu.Unlock()

	childOpts := []ManagerOption{
		WithName(fmt.Sprintf("%s/child-%d", m.name, seq)),
		WithLogger(m.baseLog),
	}
	childOpts = append(childOpts, opts...)
	// The child always shares the parent's runtime, which the parent closes.
	childOpts = append(childOpts, WithRuntime(m.runtime))
	child := NewManager(svc, childOpts...)

	cfg := taskConfig{name: child.Name(), daemon: daemon}
	if _, err := m.spawnTask(op, cfg, child.runAsChild); err != nil {
		return nil, err
	}
	return child, nil
}

// runAsChild is the parent-side task body of a child Manager. Cancelling
// ctx stops the child through the AfterFunc registered by Start; the wait
// itself must not be cut short, so the child always drains fully.
func (m *Manager) runAsChild(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	return m.WaitFinished(context.WithoutCancel(ctx))
}
