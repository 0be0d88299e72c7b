package absences

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
)

type Decision string

const (
	DecisionInline   Decision = "inline"
	DecisionDeferred Decision = "deferred"
)

// Reconciler is the single entry point every trigger calls.
type Reconciler interface {
	CreateAbsencesForSession(ctx context.Context, sessionID uint64, kind sqlc.AbsencesSessionKind) (*Stats, error)
}

// TaskScheduler is the part of the delayed queue the dispatcher uses.
type TaskScheduler interface {
	Enqueue(ctx context.Context, p queue.Payload, notBefore time.Time) (queue.Task, error)
	Cancel(ctx context.Context, p queue.Payload) (int64, error)
}

// Dispatcher runs reconciliation now when the session is already over and
// defers it to the queue otherwise.
type Dispatcher struct {
	reconciler Reconciler
	tasks      TaskScheduler
	logger     *observability.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewDispatcher(reconciler Reconciler, tasks TaskScheduler, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		reconciler: reconciler,
		tasks:      tasks,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Dispatch compares end with the current instant. On the inline path any
// pending task of the session is superseded first, since the run it was
// waiting for happens now.
func (d *Dispatcher) Dispatch(ctx context.Context, ref SessionRef, end time.Time) (Decision, error) {
	now := d.now()
	fields := []zap.Field{
		zap.String("session_kind", string(ref.Kind)),
		zap.Uint64("session_id", ref.ID),
		zap.Time("not_before", end.UTC()),
		zap.Time("now", now.UTC()),
	}

	if end.After(now) {
		d.record(ref, DecisionDeferred)
		d.logger.Info(ctx, "Scheduling decision", append(fields, zap.String("decision", string(DecisionDeferred)))...)
		if _, err := d.tasks.Enqueue(ctx, ref.payload(), end); err != nil {
			return DecisionDeferred, err
		}
		return DecisionDeferred, nil
	}

	d.record(ref, DecisionInline)
	d.logger.Info(ctx, "Scheduling decision", append(fields, zap.String("decision", string(DecisionInline)))...)
	if n, err := d.tasks.Cancel(ctx, ref.payload()); err != nil {
		d.logger.Warn(ctx, "Failed to supersede pending tasks before inline reconciliation", append(fields, zap.Error(err))...)
	} else if n > 0 {
		d.logger.Info(ctx, "Superseded pending tasks", append(fields, zap.Int64("superseded", n))...)
	}

	_, err := d.reconciler.CreateAbsencesForSession(WithTrigger(ctx, TriggerInline), ref.ID, ref.Kind)
	return DecisionInline, err
}

func (d *Dispatcher) record(ref SessionRef, decision Decision) {
	if d.metrics != nil {
		d.metrics.SchedulingDecisions.WithLabelValues(string(ref.Kind), string(decision)).Inc()
	}
}
