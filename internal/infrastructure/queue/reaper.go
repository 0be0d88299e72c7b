package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	dberrors "github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
)

// ReapStale returns tasks whose reservation outlived the visibility timeout
// to pending. Reservations that already used their last attempt are failed
// instead, which keeps the attempt bound intact across crashes.
func (q *Queue) ReapStale(ctx context.Context) (released, failed int64, err error) {
	now := q.now().UTC()
	cutoff := now.Add(-q.cfg.VisibilityTimeout)

	res, err := q.repo.ReleaseStaleTasks(ctx, sqlc.ReleaseStaleTasksParams{
		LastError: nullString("reservation expired"),
		Now:       now,
		Cutoff:    cutoff,
	})
	if err != nil {
		return 0, 0, dberrors.ToAppError(err, "failed to release stale tasks")
	}
	released, _ = res.RowsAffected()

	res, err = q.repo.FailStaleTasks(ctx, sqlc.FailStaleTasksParams{
		LastError: nullString("reservation expired on last attempt"),
		Now:       now,
		Cutoff:    cutoff,
	})
	if err != nil {
		return released, 0, dberrors.ToAppError(err, "failed to fail exhausted stale tasks")
	}
	failed, _ = res.RowsAffected()

	if q.metrics != nil {
		q.metrics.TasksReclaimed.Add(float64(released))
		if failed > 0 {
			q.metrics.TaskTerminalFailures.WithLabelValues("", "RESERVATION_EXPIRED").Add(float64(failed))
		}
	}
	return released, failed, nil
}

// RunReaper calls ReapStale every ReaperInterval until ctx is cancelled.
func (q *Queue) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			released, failed, err := q.ReapStale(ctx)
			if q.metrics != nil {
				q.metrics.RecordBackgroundJob("task_reaper", time.Since(start), err)
			}
			if err != nil {
				q.logger.Error(ctx, "Task reaper failed", zap.Error(err))
				continue
			}
			if released > 0 || failed > 0 {
				q.logger.Warn(ctx, "Reclaimed stale task reservations",
					zap.Int64("released", released),
					zap.Int64("failed", failed),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}
