package absences

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	dberrors "github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/locking"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

const (
	TriggerInline   = "inline"
	TriggerQueue    = "queue"
	TriggerSweep    = "sweep"
	TriggerOperator = "operator"
)

type triggerKey struct{}

// WithTrigger tags ctx with what started a reconciliation run.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return "direct"
}

// SessionSource reads sessions as they are now, never a snapshot.
type SessionSource interface {
	GetSession(ctx context.Context, ref SessionRef) (Session, error)
	ListSessionsBetween(ctx context.Context, fromDate, toDate string) ([]Session, error)
}

type RosterSource interface {
	ListRoster(ctx context.Context, scope Scope) ([]Student, error)
}

type SignalSource interface {
	FirstSignals(ctx context.Context, scope Scope, from, to time.Time) (map[uint64]Signal, error)
}

// AbsenceStore persists absence records keyed by (kind, session, student).
type AbsenceStore interface {
	ListForSession(ctx context.Context, ref SessionRef) (map[uint64]sqlc.Absence, error)
	// Upsert writes every record in one transaction.
	Upsert(ctx context.Context, records []sqlc.UpsertAbsenceParams) error
}

type ReconcileConfig struct {
	SignalLeadTime time.Duration
	LateTolerance  time.Duration
	LockTTL        time.Duration
}

func ReconcileConfigFrom(cfg *config.SchedulingConfig) ReconcileConfig {
	return ReconcileConfig{
		SignalLeadTime: cfg.SignalLeadTime,
		LateTolerance:  cfg.LateTolerance,
		LockTTL:        cfg.LockTTL,
	}
}

// Service reconciles a session's roster against device signals.
type Service struct {
	sessions SessionSource
	roster   RosterSource
	signals  SignalSource
	store    AbsenceStore
	locker   locking.Locker
	calc     *EndTimeCalculator
	cfg      ReconcileConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
	audit    *observability.AuditLogger
	tracer   *observability.Tracer
	now      func() time.Time
}

func NewService(
	sessions SessionSource,
	roster RosterSource,
	signals SignalSource,
	store AbsenceStore,
	locker locking.Locker,
	calc *EndTimeCalculator,
	cfg ReconcileConfig,
	logger *observability.Logger,
	metrics *observability.Metrics,
	audit *observability.AuditLogger,
) *Service {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Service{
		sessions: sessions,
		roster:   roster,
		signals:  signals,
		store:    store,
		locker:   locker,
		calc:     calc,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		audit:    audit,
		tracer:   observability.NewTracer("absences.reconciliation"),
		now:      time.Now,
	}
}

// CreateAbsencesForSession upserts one absence record per roster student.
// Running it again with unchanged signals writes nothing.
func (s *Service) CreateAbsencesForSession(ctx context.Context, sessionID uint64, kind sqlc.AbsencesSessionKind) (stats *Stats, err error) {
	ref := SessionRef{Kind: kind, ID: sessionID}
	trigger := triggerFrom(ctx)
	started := time.Now()

	ctx = context.WithValue(ctx, observability.SessionRefKey, ref.String())
	ctx, span := s.tracer.Start(ctx, "absences.reconcile",
		attribute.String("session.kind", string(kind)),
		attribute.Int64("session.id", int64(sessionID)),
		attribute.String("trigger", trigger),
	)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "Recovered panic during reconciliation", zap.Any("panic", r))
			stats, err = nil, ExecutionError(fmt.Errorf("panic: %v", r), "Reconciliation panicked")
		}
		observability.End(span, err)
		s.report(ctx, trigger, ref, stats, err, time.Since(started))
	}()

	release, err := s.locker.Acquire(ctx, ref.String(), s.cfg.LockTTL)
	if stderrors.Is(err, locking.ErrNotAcquired) {
		if s.metrics != nil {
			s.metrics.ReconciliationLockContend.Inc()
		}
		return nil, ErrLockContended
	}
	if err != nil {
		return nil, TransientDependencyError(err, "Failed to acquire session lock")
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn(ctx, "Failed to release session lock", zap.Error(relErr))
		}
	}()

	return s.reconcile(ctx, ref)
}

func (s *Service) reconcile(ctx context.Context, ref SessionRef) (*Stats, error) {
	session, err := s.sessions.GetSession(ctx, ref)
	if err != nil {
		return nil, dependencyError(err, "Failed to load session")
	}
	if session.Status == SessionStatusCancelled {
		return &Stats{Session: ref, Skipped: "session cancelled"}, nil
	}

	end, err := s.calc.EndInstant(session.Date, session.EndTime)
	if err != nil {
		return nil, err
	}
	var start time.Time
	if session.StartTime != "" {
		if start, err = s.calc.Combine(session.Date, session.StartTime); err != nil {
			return nil, err
		}
	}
	from, to := s.window(session, start, end)

	students, err := s.roster.ListRoster(ctx, session.Scope)
	if err != nil {
		return nil, dependencyError(err, "Failed to load roster")
	}
	signals, err := s.signals.FirstSignals(ctx, session.Scope, from, to)
	if err != nil {
		return nil, dependencyError(err, "Failed to load attendance signals")
	}
	existing, err := s.store.ListForSession(ctx, ref)
	if err != nil {
		return nil, dependencyError(err, "Failed to load existing absences")
	}

	now := s.now().UTC()
	stats := &Stats{Session: ref, Roster: len(students)}
	writes := make([]sqlc.UpsertAbsenceParams, 0, len(students))
	seen := make(map[uint64]struct{}, len(students))

	for _, student := range students {
		if student.ID == 0 {
			stats.Errors++
			continue
		}
		if _, dup := seen[student.ID]; dup {
			continue
		}
		seen[student.ID] = struct{}{}

		var signal *Signal
		if sig, ok := signals[student.ID]; ok {
			signal = &sig
		}
		prev, had := existing[student.ID]
		var prevPtr *sqlc.Absence
		if had {
			prevPtr = &prev
		}

		status := decideStatus(prevPtr, signal, start, s.cfg.LateTolerance)
		firstSignal := sql.NullTime{}
		if signal != nil {
			firstSignal = sql.NullTime{Time: signal.FirstSeenAt.UTC(), Valid: true}
		}
		stats.count(status)

		switch {
		case !had:
			stats.Created++
		case prev.Status == status && sameInstant(prev.FirstSignalAt, firstSignal):
			stats.Unchanged++
			continue
		default:
			stats.Updated++
		}

		writes = append(writes, sqlc.UpsertAbsenceParams{
			SessionKind:   ref.Kind,
			SessionID:     ref.ID,
			StudentID:     student.ID,
			Status:        status,
			FirstSignalAt: firstSignal,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if len(writes) > 0 {
		if err := s.store.Upsert(ctx, writes); err != nil {
			return nil, dependencyError(err, "Failed to write absences")
		}
	}
	return stats, nil
}

// window is [start - lead, end + grace]. Without a start time the whole day
// up to the end instant counts.
func (s *Service) window(session Session, start, end time.Time) (time.Time, time.Time) {
	if start.IsZero() {
		day, _ := s.calc.Combine(session.Date, "00:00")
		return day.UTC(), end.UTC()
	}
	return start.Add(-s.cfg.SignalLeadTime).UTC(), end.UTC()
}

// decideStatus maps the earliest signal onto a status. A left_early mark set
// by an operator survives as long as the student was seen at all. Late
// marking only applies when lateTolerance is positive.
func decideStatus(prev *sqlc.Absence, signal *Signal, start time.Time, lateTolerance time.Duration) sqlc.AbsencesStatus {
	if signal == nil {
		return sqlc.AbsencesStatusAbsent
	}
	if prev != nil && prev.Status == sqlc.AbsencesStatusLeftEarly {
		return sqlc.AbsencesStatusLeftEarly
	}
	if lateTolerance > 0 && !start.IsZero() && signal.FirstSeenAt.After(start.Add(lateTolerance)) {
		return sqlc.AbsencesStatusLate
	}
	return sqlc.AbsencesStatusPresent
}

func (st *Stats) count(status sqlc.AbsencesStatus) {
	switch status {
	case sqlc.AbsencesStatusPresent:
		st.Present++
	case sqlc.AbsencesStatusLate:
		st.Late++
	case sqlc.AbsencesStatusAbsent:
		st.Absent++
	case sqlc.AbsencesStatusLeftEarly:
		st.LeftEarly++
	}
}

func sameInstant(a, b sql.NullTime) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Time.Equal(b.Time)
}

// dependencyError maps collaborator failures onto the reconciliation
// taxonomy: storage faults that may clear become TRANSIENT_DEPENDENCY,
// anything else unexpected becomes EXECUTION_ERROR.
func dependencyError(err error, message string) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	appErr := dberrors.ToAppError(err, message)
	if appErr.Code == errors.ErrCodeTransientDependency {
		return appErr
	}
	return ExecutionError(err, message)
}

func (s *Service) report(ctx context.Context, trigger string, ref SessionRef, stats *Stats, err error, took time.Duration) {
	event := observability.ReconciliationEvent{
		Trigger:     trigger,
		SessionKind: string(ref.Kind),
		SessionID:   ref.ID,
		Err:         err,
	}
	if principal, ok := ctx.Value(observability.PrincipalKey).(string); ok {
		event.Principal = principal
	}
	if stats != nil {
		event.Roster = stats.Roster
		event.Created = stats.Created
		event.Updated = stats.Updated
		event.Unchanged = stats.Unchanged
		event.Present = stats.Present
		event.Late = stats.Late
		event.Absent = stats.Absent
		event.Errors = stats.Errors
	}

	if s.metrics != nil {
		s.metrics.RecordReconciliation(event, took)
	}
	if s.audit != nil {
		s.audit.LogReconciliation(ctx, event)
	}

	fields := []zap.Field{
		zap.String("trigger", trigger),
		zap.String("session_kind", string(ref.Kind)),
		zap.Uint64("session_id", ref.ID),
		zap.Duration("duration", took),
	}
	if err != nil {
		fields = append(fields, zap.String("error_code", errorCodeOf(err)), zap.Error(err))
		if errors.IsRetryable(err) {
			s.logger.Warn(ctx, "Reconciliation failed", fields...)
		} else {
			s.logger.Error(ctx, "Reconciliation failed", fields...)
		}
		return
	}
	s.logger.Info(ctx, "Reconciliation completed", append(fields,
		zap.String("outcome", outcome(stats)),
		zap.Int("roster", stats.Roster),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("present", stats.Present),
		zap.Int("late", stats.Late),
		zap.Int("absent", stats.Absent),
		zap.Int("errors", stats.Errors),
	)...)
}

func outcome(stats *Stats) string {
	if stats.Skipped != "" {
		return "skipped"
	}
	return "success"
}
