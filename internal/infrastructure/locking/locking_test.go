package locking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	l := NewRedisLocker(client)
	l.newToken = func() string { return "token-1" }
	return l, mock
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mock := newRedisLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("absences:lock:course:42", "token-1", 2*time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"absences:lock:course:42"}, "token-1").SetVal(int64(1))

	release, err := l.Acquire(ctx, "course:42", 2*time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Contended(t *testing.T) {
	l, mock := newRedisLocker(t)

	mock.ExpectSetNX("absences:lock:exam:7", "token-1", time.Minute).SetVal(false)

	release, err := l.Acquire(context.Background(), "exam:7", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, release)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Unavailable(t *testing.T) {
	l, mock := newRedisLocker(t)

	mock.ExpectSetNX("absences:lock:exam:7", "token-1", time.Minute).SetErr(errors.New("connection refused"))

	_, err := l.Acquire(context.Background(), "exam:7", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	release, err := l.Acquire(ctx, "course:42", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "course:42", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	_, err = l.Acquire(ctx, "course:43", time.Minute)
	assert.NoError(t, err, "other keys are independent")

	require.NoError(t, release(ctx))
	release2, err := l.Acquire(ctx, "course:42", time.Minute)
	require.NoError(t, err)

	// A stale release must not drop the newer holder.
	require.NoError(t, release(ctx))
	_, err = l.Acquire(ctx, "course:42", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "course:42", time.Minute)
	assert.NoError(t, err, "expired holders are replaced")
	_ = release2
}
