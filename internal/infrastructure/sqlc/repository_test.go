package sqlc

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database"
	dberrors "github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
)

func newTestRepository(t *testing.T, withBreaker bool) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	retry := dberrors.DefaultRetryConfig()
	retry.InitialInterval = time.Millisecond
	retry.MaxInterval = time.Millisecond
	db := database.Wrap(sqlDB, retry, nil, nil)

	var breaker *database.BreakerDB
	if withBreaker {
		breaker = database.NewBreakerDB(db, config.CBConfig{
			Enabled:          true,
			MaxFailures:      1,
			ResetTimeout:     time.Minute,
			FailureThreshold: 0.5,
		}, nil, nil)
	}
	return NewRepository(db, breaker), mock
}

func TestWithTransaction_Commit(t *testing.T) {
	repo, mock := newTestRepository(t, false)
	now := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reconciliation_tasks").
		WithArgs(now, now, AbsencesSessionKindCourse, uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithTransaction(context.Background(), func(q *Queries) error {
		_, err := q.SupersedePendingTasks(context.Background(), SupersedePendingTasksParams{
			Now:         now,
			SessionKind: AbsencesSessionKindCourse,
			SessionID:   42,
		})
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	repo, mock := newTestRepository(t, false)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.WithTransaction(context.Background(), func(q *Queries) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_ReplaysDeadlock(t *testing.T) {
	repo, mock := newTestRepository(t, true)
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := repo.WithTransaction(context.Background(), func(q *Queries) error {
		calls++
		if calls == 1 {
			return deadlock
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_BreakerOpen(t *testing.T) {
	repo, mock := newTestRepository(t, true)
	lost := &mysql.MySQLError{Number: 2013, Message: "Lost connection"}

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}
	err := repo.WithTransaction(context.Background(), func(q *Queries) error { return lost })
	require.Error(t, err)

	err = repo.WithTransaction(context.Background(), func(q *Queries) error {
		t.Fatal("transaction must not start while the breaker is open")
		return nil
	})
	assert.True(t, database.IsBreakerOpen(err))
}

func TestQueries_ListRosterPassesNullableScope(t *testing.T) {
	repo, mock := newTestRepository(t, false)
	rows := sqlmock.NewRows([]string{"id", "matricule", "first_name", "last_name", "institution_id", "promotion_id", "group_id", "city_id"}).
		AddRow(1, "M001", "Salma", "Idrissi", 1, 2, nil, 3).
		AddRow(2, "M002", "Yassine", "Alaoui", 1, 2, 7, 3)

	group := sql.NullInt64{}
	city := sql.NullInt64{Int64: 3, Valid: true}
	mock.ExpectQuery("SELECT id, matricule").
		WithArgs(uint64(1), uint64(2), group, group, city, city).
		WillReturnRows(rows)

	students, err := repo.ListRoster(context.Background(), ListRosterParams{
		InstitutionID: 1,
		PromotionID:   2,
		GroupID:       group,
		CityID:        city,
	})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.False(t, students[0].GroupID.Valid)
	assert.Equal(t, int64(7), students[1].GroupID.Int64)
}

func TestQueries_ClaimDueTaskNoRows(t *testing.T) {
	repo, mock := newTestRepository(t, false)
	now := time.Now().UTC()

	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ClaimDueTask(context.Background(), now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
