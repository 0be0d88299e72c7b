package absences

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

func setupScheduler(t *testing.T, now time.Time) (*Scheduler, *fakeWorld, *fakeReconciler) {
	t.Helper()
	world := newFakeWorld()
	reconciler := &fakeReconciler{}
	s := NewScheduler(world, reconciler, NewEndTimeCalculator(time.UTC, DefaultGracePeriod), 2*time.Hour,
		observability.NewNopLogger(), observability.NewTestMetrics())
	s.now = fixedClock(now)
	return s, world, reconciler
}

func addSession(w *fakeWorld, kind sqlc.AbsencesSessionKind, id uint64, date, end string) {
	ref := SessionRef{Kind: kind, ID: id}
	w.sessions[ref] = Session{Ref: ref, Date: date, StartTime: "08:00", EndTime: end}
}

func TestSweep_ReconcilesRecentlyEndedSessions(t *testing.T) {
	s, world, reconciler := setupScheduler(t, at(12, 0))

	addSession(world, sqlc.AbsencesSessionKindCourse, 1, "2024-03-01", "11:00")  // ended 11:05
	addSession(world, sqlc.AbsencesSessionKindExam, 2, "2024-03-01", "10:30")    // ended 10:35
	addSession(world, sqlc.AbsencesSessionKindCourse, 3, "2024-03-01", "09:00")  // too old
	addSession(world, sqlc.AbsencesSessionKindCourse, 4, "2024-03-01", "11:58")  // not over yet
	addSession(world, sqlc.AbsencesSessionKindCourse, 5, "2024-03-01", "broken") // malformed

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Reconciled)
	assert.Equal(t, 0, result.Failed)

	var refs []SessionRef
	for _, call := range reconciler.calls {
		assert.Equal(t, TriggerSweep, call.Trigger)
		refs = append(refs, call.Ref)
	}
	assert.ElementsMatch(t, []SessionRef{
		{Kind: sqlc.AbsencesSessionKindCourse, ID: 1},
		{Kind: sqlc.AbsencesSessionKindExam, ID: 2},
	}, refs)
}

func TestSweep_SpansMidnight(t *testing.T) {
	s, world, reconciler := setupScheduler(t, at(24, 30))

	addSession(world, sqlc.AbsencesSessionKindCourse, 1, "2024-03-01", "23:30")
	addSession(world, sqlc.AbsencesSessionKindCourse, 2, "2024-03-02", "00:10")

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reconciled)
	assert.Len(t, reconciler.calls, 2)
}

func TestSweep_CountsFailures(t *testing.T) {
	s, world, reconciler := setupScheduler(t, at(12, 0))
	reconciler.err = errors.New(errors.ErrCodeTransientDependency, "db down")

	addSession(world, sqlc.AbsencesSessionKindCourse, 1, "2024-03-01", "11:00")

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Reconciled)
}

func TestSweep_ListFailure(t *testing.T) {
	s, world, _ := setupScheduler(t, at(12, 0))
	world.sessionErr = stderrors.New("boom")

	_, err := s.Sweep(context.Background())
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeExecution, appErr.Code)
}

func TestStartSweepJob_StopsOnCancel(t *testing.T) {
	s, world, reconciler := setupScheduler(t, at(12, 0))
	addSession(world, sqlc.AbsencesSessionKindCourse, 1, "2024-03-01", "11:00")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartSweepJob(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		reconciler.mu.Lock()
		defer reconciler.mu.Unlock()
		return len(reconciler.calls) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep job did not stop")
	}
}

func TestTaskHandler(t *testing.T) {
	reconciler := &fakeReconciler{}
	h := TaskHandler(reconciler)

	err := h.Handle(context.Background(), queue.Task{Payload: queue.Payload{SessionID: 42, Kind: sqlc.AbsencesSessionKindCourse}})
	require.NoError(t, err)
	require.Len(t, reconciler.calls, 1)
	assert.Equal(t, course42, reconciler.calls[0].Ref)
	assert.Equal(t, TriggerQueue, reconciler.calls[0].Trigger)

	reconciler.err = SessionNotFoundError(course42, nil)
	err = h.Handle(context.Background(), queue.Task{Payload: queue.Payload{SessionID: 42, Kind: sqlc.AbsencesSessionKindCourse}})
	assert.False(t, errors.IsRetryable(err))
}
