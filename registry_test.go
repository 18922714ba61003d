package asyncsvc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	var r registry
	now := time.Now()
	boom := errors.New("boom")

	require.Equal(t, Stats{}, r.stats())

	a := r.register("a", false, now)
	b := r.register("b", true, now)
	c := r.register("c", false, now)
	require.Equal(t, TaskID(0), a.info.ID)
	require.Equal(t, TaskID(2), c.info.ID)
	require.Equal(t, Stats{TotalCount: 3, PendingCount: 3}, r.stats())
	require.Len(t, r.pending(), 3)

	require.True(t, r.finish(a.info.ID, OutcomeSucceeded, nil, now))
	require.True(t, r.finish(b.info.ID, OutcomeFailed, boom, now))
	require.Equal(t, Stats{TotalCount: 3, FinishedCount: 2, PendingCount: 1}, r.stats())

	// A second completion is never counted twice
	require.False(t, r.finish(a.info.ID, OutcomeFailed, boom, now))
	require.Equal(t, OutcomeSucceeded, r.get(a.info.ID).info.Outcome)
	require.Equal(t, 2, r.stats().FinishedCount)

	pending := r.pending()
	require.Len(t, pending, 1)
	require.Same(t, c, pending[0])

	select {
	case <-b.done:
	default:
		t.Fatal("finished entry should close done")
	}

	require.Nil(t, r.get(-1))
	require.Nil(t, r.get(3))
	require.False(t, r.finish(42, OutcomeSucceeded, nil, now))
}

func TestRegistryErrOnlyForFailures(t *testing.T) {
	var r registry
	e := r.register("x", false, time.Now())
	r.finish(e.info.ID, OutcomeCancelled, errors.New("context canceled"), time.Now())
	require.NoError(t, e.info.Err)
}

func TestSnapshot(t *testing.T) {
	var r registry
	now := time.Now()
	r.register("first", false, now)
	r.register("dup", false, now)
	second := r.register("dup", true, now)
	r.finish(second.info.ID, OutcomeCancelled, nil, now)

	snap := r.snapshot()
	require.Equal(t, Stats{TotalCount: 3, FinishedCount: 1, PendingCount: 2}, snap.Stats)
	require.Len(t, snap.Tasks, 3)

	got, ok := snap.Get("dup")
	require.True(t, ok)
	require.Equal(t, TaskID(1), got.ID, "Get returns the first match")

	_, ok = snap.Get("missing")
	require.False(t, ok)

	// Snapshots are copies
	r.finish(0, OutcomeSucceeded, nil, now)
	require.Equal(t, OutcomePending, snap.Tasks[0].Outcome)
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{
		OutcomePending:   "pending",
		OutcomeSucceeded: "succeeded",
		OutcomeFailed:    "failed",
		OutcomeCancelled: "cancelled",
		Outcome(99):      "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
