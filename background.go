package asyncsvc

import (
	"context"
	"errors"
)

// Background runs svc in the background for the duration of body.
//
// The Manager is started and body is called once it reaches STARTED. When
// body returns, fails or panics, the Manager is stopped and drained before
// Background returns. An error from body and an error from the Manager are
// both reported; when there are two, they are combined in a *MultiError.
//
// Example:
//
//	err := asyncsvc.Background(ctx, svc, func(ctx context.Context, m *asyncsvc.Manager) error {
//	    // the service runs while this function does
//	    return doWork(ctx)
//	})
func Background(ctx context.Context, svc Service, body func(ctx context.Context, m *Manager) error, opts ...ManagerOption) (err error) {
	m := NewManager(svc, opts...)
	if err := m.Start(ctx); err != nil {
		return err
	}

	defer func() {
		r := recover()

		m.Stop()
		// Teardown always drains, even when ctx is already cancelled.
		waitErr := m.WaitFinished(context.WithoutCancel(ctx))

		var merr MultiError
		merr.Add(err)
		if !errors.Is(err, waitErr) {
			merr.Add(waitErr)
		}
		err = merr.Err()

		if r != nil {
			panic(r)
		}
	}()

	if err := m.WaitStarted(ctx); err != nil {
		return err
	}
	return body(ctx, m)
}

// RunService runs svc to completion and returns its first error.
// Cancelling ctx stops the service.
func RunService(ctx context.Context, svc Service, opts ...ManagerOption) error {
	m := NewManager(svc, opts...)
	if err := m.Start(ctx); err != nil {
		return err
	}
	return m.WaitFinished(context.WithoutCancel(ctx))
}
