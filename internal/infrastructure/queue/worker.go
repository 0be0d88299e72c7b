package queue

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	dberrors "github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

const settleTimeout = 10 * time.Second

// Run starts the worker pool and blocks until ctx is cancelled and every
// in-flight task has been settled.
func (q *Queue) Run(ctx context.Context, h Handler) {
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		worker := fmt.Sprintf("%s-%d", q.instance, i)
		go func() {
			defer wg.Done()
			q.poll(ctx, worker, h)
		}()
	}
	q.logger.Info(ctx, "Task workers started",
		zap.Int("workers", q.cfg.Workers),
		zap.Duration("poll_interval", q.cfg.PollInterval),
	)
	wg.Wait()
	q.logger.Info(context.Background(), "Task workers stopped")
}

func (q *Queue) poll(ctx context.Context, worker string, h Handler) {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			processed, err := q.ProcessNext(ctx, worker, h)
			if err != nil {
				q.logger.Warn(ctx, "Task poll failed", zap.String("worker", worker), zap.Error(err))
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessNext claims at most one due task, runs it and records the outcome.
// It reports whether a task was claimed.
func (q *Queue) ProcessNext(ctx context.Context, worker string, h Handler) (bool, error) {
	task, ok, err := q.claim(ctx, worker)
	if err != nil || !ok {
		return false, err
	}

	ctx = context.WithValue(ctx, observability.TaskIDKey, task.UUID)
	ctx = context.WithValue(ctx, observability.SessionRefKey, fmt.Sprintf("%s:%d", task.Payload.Kind, task.Payload.SessionID))

	spanCtx, span := q.tracer.Start(ctx, "queue.execute",
		attribute.String("task.id", task.UUID),
		attribute.String("session.kind", string(task.Payload.Kind)),
		attribute.Int64("session.id", int64(task.Payload.SessionID)),
		attribute.Int("task.attempt", task.Attempt),
	)
	start := time.Now()
	runErr := q.execute(spanCtx, h, task)
	observability.End(span, runErr)
	if q.metrics != nil {
		q.metrics.RecordBackgroundJob("reconciliation_task", time.Since(start), runErr)
	}

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	return true, q.settle(settleCtx, worker, task, runErr)
}

func (q *Queue) claim(ctx context.Context, worker string) (Task, bool, error) {
	now := q.now().UTC()
	var (
		row   sqlc.ReconciliationTask
		found bool
	)
	err := q.repo.WithTransaction(ctx, func(tx *sqlc.Queries) error {
		found = false
		var err error
		row, err = tx.ClaimDueTask(ctx, now)
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.MarkTaskRunning(ctx, sqlc.MarkTaskRunningParams{
			Now:    now,
			Worker: nullString(worker),
			ID:     row.ID,
		}); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return Task{}, false, dberrors.ToAppError(err, "failed to claim reconciliation task")
	}
	if !found {
		return Task{}, false, nil
	}

	row.Status = sqlc.ReconciliationTasksStatusRunning
	row.Attempts++
	row.ReservedAt = sql.NullTime{Time: now, Valid: true}
	row.ReservedBy = nullString(worker)
	task := fromRow(row)

	if q.metrics != nil {
		q.metrics.TaskLag.Observe(now.Sub(task.NotBefore).Seconds())
	}
	return task, true, nil
}

// execute runs the handler, converting a panic into an execution error.
func (q *Queue) execute(ctx context.Context, h Handler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error(ctx, "Recovered panic in task handler",
				zap.String("task_id", task.UUID),
				zap.Any("panic", r),
			)
			err = errors.Wrap(fmt.Errorf("panic: %v", r), errors.ErrCodeExecution, "reconciliation task panicked")
		}
	}()
	return h.Handle(ctx, task)
}

func (q *Queue) settle(ctx context.Context, worker string, task Task, runErr error) error {
	now := q.now().UTC()
	kind := string(task.Payload.Kind)
	fields := []zap.Field{
		zap.String("task_id", task.UUID),
		zap.String("session_kind", kind),
		zap.Uint64("session_id", task.Payload.SessionID),
		zap.Int("attempt", task.Attempt),
		zap.Int("max_attempts", task.MaxAttempts),
	}

	var (
		res    sql.Result
		err    error
		result string
	)
	switch {
	case runErr == nil:
		result = "success"
		res, err = q.repo.MarkTaskSucceeded(ctx, sqlc.MarkTaskSucceededParams{
			Now:    now,
			ID:     task.ID,
			Worker: nullString(worker),
		})
		if err == nil {
			q.logger.Info(ctx, "Reconciliation task succeeded", fields...)
		}

	case !errors.IsRetryable(runErr) || task.Attempt >= task.MaxAttempts:
		result = "failed"
		res, err = q.repo.MarkTaskFailed(ctx, sqlc.MarkTaskFailedParams{
			LastError: nullString(runErr.Error()),
			Now:       now,
			ID:        task.ID,
			Worker:    nullString(worker),
		})
		if err == nil {
			if q.metrics != nil {
				q.metrics.TaskTerminalFailures.WithLabelValues(kind, code(runErr)).Inc()
			}
			q.logger.Error(ctx, "Reconciliation task failed permanently",
				append(fields, zap.String("error_code", code(runErr)), zap.Error(runErr))...)
		}

	default:
		result = "retry"
		next := now.Add(q.backoff.NextBackOff())
		res, err = q.repo.RescheduleTask(ctx, sqlc.RescheduleTaskParams{
			AvailableAt: next,
			LastError:   nullString(runErr.Error()),
			Now:         now,
			ID:          task.ID,
			Worker:      nullString(worker),
		})
		if err == nil {
			q.logger.Warn(ctx, "Reconciliation task will be retried",
				append(fields, zap.Time("not_before", next), zap.Error(runErr))...)
		}
	}

	if q.metrics != nil {
		q.metrics.TaskAttempts.WithLabelValues(kind, result).Inc()
	}
	if err != nil {
		return dberrors.ToAppError(err, "failed to record task outcome")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		q.logger.Warn(ctx, "Task reservation lost before outcome was recorded",
			append(fields, zap.String("worker", worker), zap.String("result", result))...)
	}
	return nil
}

func code(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return string(errors.ErrCodeExecution)
}
