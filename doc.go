// Package asyncsvc provides structured supervision for asynchronous services.
//
// A Service is a unit of work with a root routine. A Manager runs that
// routine and every task it registers, and guarantees three things:
//
//   - a failure anywhere cancels everything the Manager tracks
//   - no task outlives its Manager
//   - the first error is reported to whoever waits on the Manager
//
// The core type is the Manager:
//
//	svc := asyncsvc.ServiceFunc(func(ctx context.Context, m *asyncsvc.Manager) error {
//	    if _, err := m.RunDaemonTask(serveHTTP); err != nil {
//	        return err
//	    }
//	    return asyncsvc.SleepForever(ctx)
//	})
//
//	m := asyncsvc.NewManager(svc, asyncsvc.WithName("api"))
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	err := m.WaitFinished(ctx)
//
// # Lifecycle
//
// A Manager moves forward only: NOT_STARTED, STARTED, RUNNING, then either
// FINISHED, or CANCELLING followed by CANCELLED once every task has
// drained. Tasks may be registered only while STARTED or RUNNING.
//
// # Daemon tasks
//
// A daemon task is expected to run for the Manager's whole life. If it
// returns, fails or is cancelled while the Manager is live, the Manager
// fails with an error matching ErrDaemonTaskExit (or the daemon's own error).
//
// # Runtimes
//
// Routines are scheduled on a Runtime. The default GoroutineRuntime runs
// each routine on its own goroutine; StopperRuntime adds a stop grace
// period; LoopRuntime runs one routine at a time, handing control over at
// Await and Checkpoint. Service code that suspends through Await,
// Checkpoint, Sleep and SleepForever behaves the same on all three.
package asyncsvc
