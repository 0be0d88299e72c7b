package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/modules/absences"
)

// Workers owns the background side of the service: the task queue pool, the
// stale reservation reaper, the safety-net sweep and the optional kafka consumer.
type Workers struct {
	container *Container
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewWorkers(container *Container) *Workers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workers{container: container, ctx: ctx, cancel: cancel}
}

func (w *Workers) Start() {
	c := w.container
	cfg := c.Config.Scheduling

	c.Logger.Info(w.ctx, "Starting background workers",
		zap.Int("queue_workers", cfg.Workers),
		zap.Bool("sweep_enabled", cfg.SweepEnabled),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Bool("kafka_enabled", c.Config.Kafka.Enabled),
	)

	w.goRun(func(ctx context.Context) {
		c.Queue.Run(ctx, absences.TaskHandler(c.AbsenceService))
	})
	w.goRun(c.Queue.RunReaper)

	if cfg.SweepEnabled {
		w.goRun(func(ctx context.Context) {
			c.Scheduler.StartSweepJob(ctx, cfg.SweepInterval)
		})
	}

	if consumer := c.NewEventConsumer(); consumer != nil {
		w.goRun(func(ctx context.Context) {
			defer func() {
				if err := consumer.Close(); err != nil {
					c.Logger.Warn(ctx, "Failed to close session event consumer", zap.Error(err))
				}
			}()
			if err := consumer.Run(ctx); err != nil {
				c.Logger.Error(ctx, "Session event consumer stopped", zap.Error(err))
			}
		})
	}

	if c.Config.Metrics.Enabled {
		w.goRun(w.collectDatabaseMetrics)
	}
}

func (w *Workers) goRun(fn func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn(w.ctx)
	}()
}

func (w *Workers) collectDatabaseMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			w.container.DB.RecordStats()
		}
	}
}

// Stop cancels every worker and waits up to timeout for them to return.
func (w *Workers) Stop(timeout time.Duration) bool {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.container.Logger.Info(context.Background(), "Background workers finished")
		return true
	case <-time.After(timeout):
		w.container.Logger.Warn(context.Background(), "Background workers did not finish in time, proceeding with shutdown")
		return false
	}
}
