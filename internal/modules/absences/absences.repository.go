package absences

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
)

// Repository reads sessions, rosters and signals owned by the course/exam
// application and writes absence records, all through the generated queries.
type Repository struct {
	repo *sqlc.Repository
}

func NewRepository(repo *sqlc.Repository) *Repository {
	return &Repository{repo: repo}
}

func (r *Repository) GetSession(ctx context.Context, ref SessionRef) (Session, error) {
	row, err := r.repo.GetSessionSchedule(ctx, sqlc.GetSessionScheduleParams{
		Kind: string(ref.Kind),
		ID:   ref.ID,
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return Session{}, SessionNotFoundError(ref, err)
	}
	if err != nil {
		return Session{}, err
	}
	return toSession(row), nil
}

func (r *Repository) ListSessionsBetween(ctx context.Context, fromDate, toDate string) ([]Session, error) {
	rows, err := r.repo.ListSessionSchedulesBetween(ctx, sqlc.ListSessionSchedulesBetweenParams{
		FromDate: fromDate,
		ToDate:   toDate,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, toSession(row))
	}
	return sessions, nil
}

func (r *Repository) ListRoster(ctx context.Context, scope Scope) ([]Student, error) {
	rows, err := r.repo.ListRoster(ctx, sqlc.ListRosterParams{
		InstitutionID: scope.InstitutionID,
		PromotionID:   scope.PromotionID,
		GroupID:       toNullInt64(scope.GroupID),
		CityID:        toNullInt64(scope.CityID),
	})
	if err != nil {
		return nil, err
	}
	students := make([]Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, Student{ID: row.ID, Matricule: row.Matricule})
	}
	return students, nil
}

// FirstSignals returns the earliest signal per student within [from, to],
// restricted to the session's city when it has one.
func (r *Repository) FirstSignals(ctx context.Context, scope Scope, from, to time.Time) (map[uint64]Signal, error) {
	rows, err := r.repo.ListFirstSignals(ctx, sqlc.ListFirstSignalsParams{
		WindowStart: from.UTC(),
		WindowEnd:   to.UTC(),
		CityID:      toNullInt64(scope.CityID),
	})
	if err != nil {
		return nil, err
	}
	signals := make(map[uint64]Signal, len(rows))
	for _, row := range rows {
		signals[row.StudentID] = Signal{
			StudentID:   row.StudentID,
			FirstSeenAt: row.FirstSeenAt,
			Count:       row.SignalCount,
		}
	}
	return signals, nil
}

func (r *Repository) ListForSession(ctx context.Context, ref SessionRef) (map[uint64]sqlc.Absence, error) {
	rows, err := r.repo.ListAbsencesForSession(ctx, sqlc.ListAbsencesForSessionParams{
		SessionKind: ref.Kind,
		SessionID:   ref.ID,
	})
	if err != nil {
		return nil, err
	}
	byStudent := make(map[uint64]sqlc.Absence, len(rows))
	for _, row := range rows {
		byStudent[row.StudentID] = row
	}
	return byStudent, nil
}

func (r *Repository) Upsert(ctx context.Context, records []sqlc.UpsertAbsenceParams) error {
	return r.repo.WithTransaction(ctx, func(q *sqlc.Queries) error {
		for _, rec := range records {
			if _, err := q.UpsertAbsence(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func toSession(row sqlc.SessionSchedule) Session {
	return Session{
		Ref:       SessionRef{Kind: sqlc.AbsencesSessionKind(row.Kind), ID: row.ID},
		Name:      row.Name,
		Date:      row.Date,
		StartTime: row.StartTime.String,
		EndTime:   row.EndTime.String,
		Scope: Scope{
			InstitutionID: row.InstitutionID,
			PromotionID:   row.PromotionID,
			GroupID:       toUint64Ptr(row.GroupID),
			CityID:        toUint64Ptr(row.CityID),
		},
		Status: row.Status,
	}
}

func toNullInt64(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func toUint64Ptr(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
