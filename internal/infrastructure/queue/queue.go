// Package queue is a durable delayed task queue stored in MariaDB. A task
// becomes due at its not-before instant, is claimed by exactly one worker per
// attempt and is retried on a fixed backoff until it succeeds, fails
// terminally or runs out of attempts.
package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	dberrors "github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
)

// Payload identifies the session a task reconciles.
type Payload struct {
	SessionID uint64                   `json:"session_id"`
	Kind      sqlc.AbsencesSessionKind `json:"kind"`
}

// Task is one queued reconciliation. Attempt counts executions started so far.
type Task struct {
	ID          uint64     `json:"id"`
	UUID        string     `json:"uuid"`
	Payload     Payload    `json:"payload"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	NotBefore   time.Time  `json:"not_before"`
	ReservedBy  string     `json:"reserved_by,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Handler executes a claimed task. A returned *errors.AppError with
// Retryable=false ends the task immediately.
type Handler interface {
	Handle(ctx context.Context, task Task) error
}

type HandlerFunc func(ctx context.Context, task Task) error

func (f HandlerFunc) Handle(ctx context.Context, task Task) error {
	return f(ctx, task)
}

type Config struct {
	MaxAttempts       int
	RetryBackoff      time.Duration
	Workers           int
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	ReaperInterval    time.Duration
}

func ConfigFrom(cfg *config.SchedulingConfig) Config {
	return Config{
		MaxAttempts:       cfg.MaxAttempts,
		RetryBackoff:      cfg.RetryBackoff,
		Workers:           cfg.Workers,
		PollInterval:      cfg.PollInterval,
		VisibilityTimeout: cfg.VisibilityTimeout,
		ReaperInterval:    cfg.ReaperInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 60 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 10 * time.Minute
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = time.Minute
	}
	return c
}

type Queue struct {
	repo     *sqlc.Repository
	cfg      Config
	backoff  backoff.BackOff
	metrics  *observability.Metrics
	logger   *observability.Logger
	tracer   *observability.Tracer
	now      func() time.Time
	newID    func() string
	instance string
}

type Option func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator replaces the task uuid source.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) { q.newID = fn }
}

// WithInstance sets the prefix of worker names written to reserved_by.
func WithInstance(name string) Option {
	return func(q *Queue) { q.instance = name }
}

func New(repo *sqlc.Repository, cfg Config, metrics *observability.Metrics, logger *observability.Logger, opts ...Option) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		repo:     repo,
		cfg:      cfg,
		backoff:  backoff.NewConstantBackOff(cfg.RetryBackoff),
		metrics:  metrics,
		logger:   logger,
		tracer:   observability.NewTracer("absences.queue"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		instance: uuid.New().String()[:8],
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = observability.NewNopLogger()
	}
	return q
}

// Enqueue schedules p to run no earlier than notBefore. Pending tasks for the
// same session are superseded in the same transaction, so at most one live
// pending task exists per session.
func (q *Queue) Enqueue(ctx context.Context, p Payload, notBefore time.Time) (Task, error) {
	now := q.now().UTC()
	task := Task{
		UUID:        q.newID(),
		Payload:     p,
		Status:      string(sqlc.ReconciliationTasksStatusPending),
		MaxAttempts: q.cfg.MaxAttempts,
		NotBefore:   notBefore.UTC(),
		CreatedAt:   now,
	}

	var superseded int64
	err := q.repo.WithTransaction(ctx, func(tx *sqlc.Queries) error {
		res, err := tx.SupersedePendingTasks(ctx, sqlc.SupersedePendingTasksParams{
			Now:         now,
			SessionKind: p.Kind,
			SessionID:   p.SessionID,
		})
		if err != nil {
			return err
		}
		superseded, _ = res.RowsAffected()

		res, err = tx.CreateTask(ctx, sqlc.CreateTaskParams{
			Uuid:        task.UUID,
			SessionKind: p.Kind,
			SessionID:   p.SessionID,
			MaxAttempts: uint32(task.MaxAttempts),
			AvailableAt: task.NotBefore,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		task.ID = uint64(id)
		return nil
	})
	if err != nil {
		return Task{}, dberrors.ToAppError(err, "failed to enqueue reconciliation task")
	}

	if q.metrics != nil {
		q.metrics.TasksEnqueued.WithLabelValues(string(p.Kind)).Inc()
		q.metrics.TasksSuperseded.Add(float64(superseded))
	}
	q.logger.Info(ctx, "Reconciliation task enqueued",
		zap.String("task_id", task.UUID),
		zap.String("session_kind", string(p.Kind)),
		zap.Uint64("session_id", p.SessionID),
		zap.Time("not_before", task.NotBefore),
		zap.Int64("superseded", superseded),
	)
	return task, nil
}

// Cancel supersedes every pending task of the session and reports how many
// were affected.
func (q *Queue) Cancel(ctx context.Context, p Payload) (int64, error) {
	now := q.now().UTC()
	res, err := q.repo.SupersedePendingTasks(ctx, sqlc.SupersedePendingTasksParams{
		Now:         now,
		SessionKind: p.Kind,
		SessionID:   p.SessionID,
	})
	if err != nil {
		return 0, dberrors.ToAppError(err, "failed to cancel pending tasks")
	}
	n, _ := res.RowsAffected()
	if n > 0 && q.metrics != nil {
		q.metrics.TasksSuperseded.Add(float64(n))
	}
	return n, nil
}

// List returns tasks newest first. An empty status lists every state.
func (q *Queue) List(ctx context.Context, status string, limit, offset int) ([]Task, error) {
	rows, err := q.repo.ListTasks(ctx, sqlc.ListTasksParams{
		Status: statusFilter(status),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, dberrors.ToAppError(err, "failed to list reconciliation tasks")
	}
	tasks := make([]Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, fromRow(row))
	}
	return tasks, nil
}

func (q *Queue) Count(ctx context.Context, status string) (int64, error) {
	n, err := q.repo.CountTasks(ctx, statusFilter(status))
	if err != nil {
		return 0, dberrors.ToAppError(err, "failed to count reconciliation tasks")
	}
	return n, nil
}

// Get loads a task by uuid.
func (q *Queue) Get(ctx context.Context, id string) (Task, error) {
	row, err := q.repo.GetTaskByUUID(ctx, id)
	if err != nil {
		return Task{}, dberrors.ToAppError(err, "failed to load reconciliation task")
	}
	return fromRow(row), nil
}

func statusFilter(status string) sqlc.NullReconciliationTasksStatus {
	if status == "" {
		return sqlc.NullReconciliationTasksStatus{}
	}
	return sqlc.NullReconciliationTasksStatus{
		ReconciliationTasksStatus: sqlc.ReconciliationTasksStatus(status),
		Valid:                     true,
	}
}

func fromRow(row sqlc.ReconciliationTask) Task {
	t := Task{
		ID:   row.ID,
		UUID: row.Uuid,
		Payload: Payload{
			SessionID: row.SessionID,
			Kind:      row.SessionKind,
		},
		Status:      string(row.Status),
		Attempt:     int(row.Attempts),
		MaxAttempts: int(row.MaxAttempts),
		NotBefore:   row.AvailableAt,
		ReservedBy:  row.ReservedBy.String,
		LastError:   row.LastError.String,
		CreatedAt:   row.CreatedAt,
	}
	if row.FinishedAt.Valid {
		finished := row.FinishedAt.Time
		t.FinishedAt = &finished
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
