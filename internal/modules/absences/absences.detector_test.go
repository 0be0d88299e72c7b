package absences

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

type detectorDeps struct {
	detector   *Detector
	dispatcher *Dispatcher
	reconciler *fakeReconciler
	tasks      *fakeTasks
	metrics    *observability.Metrics
}

func setupDetector(t *testing.T, now time.Time) *detectorDeps {
	t.Helper()
	logger := observability.NewNopLogger()
	metrics := observability.NewTestMetrics()
	reconciler := &fakeReconciler{}
	tasks := &fakeTasks{}

	dispatcher := NewDispatcher(reconciler, tasks, logger, metrics)
	dispatcher.now = fixedClock(now)
	detector := NewDetector(NewEndTimeCalculator(time.UTC, DefaultGracePeriod), dispatcher, logger, metrics)

	return &detectorDeps{
		detector:   detector,
		dispatcher: dispatcher,
		reconciler: reconciler,
		tasks:      tasks,
		metrics:    metrics,
	}
}

func courseEvent(eventType, endTime string) SessionEvent {
	return SessionEvent{
		Type:      eventType,
		Kind:      sqlc.AbsencesSessionKindCourse,
		ID:        42,
		Date:      "2024-03-01",
		StartTime: "08:00",
		EndTime:   endTime,
	}
}

func TestOnCreated_FutureSessionIsDeferred(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	deps.detector.OnCreated(context.Background(), courseEvent(EventCreated, "09:00"))

	require.Len(t, deps.tasks.enqueued, 1)
	call := deps.tasks.enqueued[0]
	assert.Equal(t, queue.Payload{SessionID: 42, Kind: sqlc.AbsencesSessionKindCourse}, call.Payload)
	assert.True(t, at(9, 5).Equal(call.NotBefore))
	assert.Empty(t, deps.reconciler.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.SchedulingDecisions.WithLabelValues("course", "deferred")))
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.SessionEventsTotal.WithLabelValues("direct", EventCreated, "deferred")))
}

func TestOnCreated_PastSessionRunsInlineOnce(t *testing.T) {
	deps := setupDetector(t, at(12, 0))

	deps.detector.OnCreated(context.Background(), courseEvent(EventCreated, "09:00"))

	assert.Empty(t, deps.tasks.enqueued)
	require.Len(t, deps.reconciler.calls, 1)
	assert.Equal(t, SessionRef{Kind: sqlc.AbsencesSessionKindCourse, ID: 42}, deps.reconciler.calls[0].Ref)
	assert.Equal(t, TriggerInline, deps.reconciler.calls[0].Trigger)
	assert.Len(t, deps.tasks.cancelled, 1)
}

func TestDispatch_EndEqualToNowIsInline(t *testing.T) {
	deps := setupDetector(t, at(9, 5))

	decision, err := deps.dispatcher.Dispatch(context.Background(), SessionRef{Kind: sqlc.AbsencesSessionKindExam, ID: 7}, at(9, 5))
	require.NoError(t, err)
	assert.Equal(t, DecisionInline, decision)
	assert.Len(t, deps.reconciler.calls, 1)
}

func TestDispatch_ReturnsInlineFailure(t *testing.T) {
	deps := setupDetector(t, at(12, 0))
	deps.reconciler.err = TransientDependencyError(stderrors.New("db down"), "Failed to load session")

	decision, err := deps.dispatcher.Dispatch(context.Background(), SessionRef{Kind: sqlc.AbsencesSessionKindCourse, ID: 42}, at(9, 5))
	assert.Equal(t, DecisionInline, decision)
	assert.Error(t, err)
}

func TestOnUpdated_ReschedulesWhenEndTimeMoves(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	created := courseEvent(EventCreated, "10:00")
	deps.detector.Handle(context.Background(), created)

	updated := courseEvent(EventUpdated, "14:00")
	updated.Previous = &SessionTiming{Date: "2024-03-01", EndTime: "10:00"}
	deps.detector.Handle(context.Background(), updated)

	require.Len(t, deps.tasks.enqueued, 2)
	assert.True(t, at(10, 5).Equal(deps.tasks.enqueued[0].NotBefore))
	assert.True(t, at(14, 5).Equal(deps.tasks.enqueued[1].NotBefore))
	assert.Empty(t, deps.reconciler.calls)
}

func TestOnUpdated_IgnoresNonTemporalChanges(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	ev := courseEvent(EventUpdated, "10:00:00")
	ev.Previous = &SessionTiming{Date: "2024-03-01T00:00:00Z", EndTime: "10:00"}
	deps.detector.OnUpdated(context.Background(), ev)

	assert.Empty(t, deps.tasks.enqueued)
	assert.Empty(t, deps.reconciler.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.SessionEventsTotal.WithLabelValues("direct", EventUpdated, "unchanged")))
}

func TestOnUpdated_DateMoveIntoPastRunsInline(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	ev := courseEvent(EventUpdated, "10:00")
	ev.Date = "2024-02-28"
	ev.Previous = &SessionTiming{Date: "2024-03-01", EndTime: "10:00"}
	deps.detector.OnUpdated(context.Background(), ev)

	assert.Empty(t, deps.tasks.enqueued)
	assert.Len(t, deps.reconciler.calls, 1)
}

func TestOnUpdated_WithoutPreviousSchedules(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	deps.detector.OnUpdated(context.Background(), courseEvent(EventUpdated, "10:00"))

	assert.Len(t, deps.tasks.enqueued, 1)
}

func TestDetector_MalformedTimingIsSwallowed(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	ev := courseEvent(EventCreated, "")
	assert.NotPanics(t, func() {
		deps.detector.OnCreated(context.Background(), ev)
	})

	assert.Empty(t, deps.tasks.enqueued)
	assert.Empty(t, deps.reconciler.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.SessionEventsTotal.WithLabelValues("direct", EventCreated, "malformed")))
}

func TestDetector_EnqueueFailureIsSwallowed(t *testing.T) {
	deps := setupDetector(t, at(8, 0))
	deps.tasks.err = errors.New(errors.ErrCodeTransientDependency, "queue unavailable")

	ev := courseEvent(EventCreated, "09:00")
	ev.Source = SourceHTTP
	assert.NotPanics(t, func() {
		deps.detector.Handle(context.Background(), ev)
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.SessionEventsTotal.WithLabelValues(SourceHTTP, EventCreated, "failed")))
}

func TestDetector_RecoversPanics(t *testing.T) {
	deps := setupDetector(t, at(12, 0))
	deps.reconciler.panic = true

	assert.NotPanics(t, func() {
		deps.detector.OnCreated(context.Background(), courseEvent(EventCreated, "09:00"))
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.metrics.SessionEventsTotal.WithLabelValues("direct", EventCreated, "panic")))
}

func TestDetector_UnknownTypeIgnored(t *testing.T) {
	deps := setupDetector(t, at(8, 0))

	deps.detector.Handle(context.Background(), courseEvent("deleted", "09:00"))

	assert.Empty(t, deps.tasks.enqueued)
	assert.Empty(t, deps.reconciler.calls)
}

func TestTimingChanged(t *testing.T) {
	assert.False(t, timingChanged(
		SessionTiming{Date: "2024-03-01", EndTime: "09:00"},
		SessionTiming{Date: "2024-03-01 00:00:00", EndTime: "09:00:00"},
		time.UTC,
	))
	assert.True(t, timingChanged(
		SessionTiming{Date: "2024-03-01", EndTime: "09:00"},
		SessionTiming{Date: "2024-03-01", EndTime: "09:30"},
		time.UTC,
	))
	assert.True(t, timingChanged(
		SessionTiming{Date: "2024-03-01", EndTime: "09:00"},
		SessionTiming{Date: "2024-03-02", EndTime: "09:00"},
		time.UTC,
	))
	// Local midnight in UTC+1 serialised as UTC is still the same day.
	assert.False(t, timingChanged(
		SessionTiming{Date: "2024-03-01", EndTime: "09:00"},
		SessionTiming{Date: "2024-02-29T23:00:00.000000Z", EndTime: "09:00"},
		time.FixedZone("UTC+1", 3600),
	))
}
