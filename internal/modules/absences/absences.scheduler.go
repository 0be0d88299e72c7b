package absences

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
)

// SweepResult counts what one safety sweep did.
type SweepResult struct {
	Candidates int
	Reconciled int
	Failed     int
}

// Scheduler runs the periodic safety sweep over recently ended sessions.
type Scheduler struct {
	sessions   SessionSource
	reconciler Reconciler
	calc       *EndTimeCalculator
	lookback   time.Duration
	logger     *observability.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewScheduler(sessions SessionSource, reconciler Reconciler, calc *EndTimeCalculator, lookback time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		sessions:   sessions,
		reconciler: reconciler,
		calc:       calc,
		lookback:   lookback,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Sweep reconciles every session whose end instant (grace included) fell in
// (now - lookback, now]. Failures are logged and counted, never returned.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	from := now.Add(-s.lookback)

	sessions, err := s.sessions.ListSessionsBetween(ctx, s.calc.DateOf(from), s.calc.DateOf(now))
	if err != nil {
		return SweepResult{}, dependencyError(err, "Failed to list sessions for sweep")
	}

	var result SweepResult
	ctx = WithTrigger(ctx, TriggerSweep)
	for _, session := range sessions {
		if ctx.Err() != nil {
			break
		}
		end, err := s.calc.EndInstant(session.Date, session.EndTime)
		if err != nil {
			s.logger.Warn(ctx, "Sweep skipped session with malformed timing",
				zap.String("session", session.Ref.String()), zap.Error(err))
			continue
		}
		if !end.After(from) || end.After(now) {
			continue
		}

		result.Candidates++
		if _, err := s.reconciler.CreateAbsencesForSession(ctx, session.Ref.ID, session.Ref.Kind); err != nil {
			result.Failed++
			continue
		}
		result.Reconciled++
	}
	return result, nil
}

// StartSweepJob runs Sweep every interval until ctx is cancelled.
func (s *Scheduler) StartSweepJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			result, err := s.Sweep(ctx)
			if s.metrics != nil {
				s.metrics.RecordBackgroundJob("absence_sweep", time.Since(start), err)
			}
			if err != nil {
				s.logger.Error(ctx, "Absence sweep failed", zap.Error(err))
				continue
			}
			s.logger.Info(ctx, "Absence sweep completed",
				zap.Int("candidates", result.Candidates),
				zap.Int("reconciled", result.Reconciled),
				zap.Int("failed", result.Failed),
			)
		case <-ctx.Done():
			return
		}
	}
}

// TaskHandler adapts the reconciler to the delayed queue's handler contract.
func TaskHandler(reconciler Reconciler) queue.Handler {
	return queue.HandlerFunc(func(ctx context.Context, task queue.Task) error {
		_, err := reconciler.CreateAbsencesForSession(WithTrigger(ctx, TriggerQueue), task.Payload.SessionID, task.Payload.Kind)
		return err
	})
}
