package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter map[string]int64

func (f fakeCounter) Count(ctx context.Context, status string) (int64, error) {
	return f[status], nil
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 1. Setup Mock DB
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	handler := NewHandler(db)

	t.Run("Health Check - OK", func(t *testing.T) {
		mock.ExpectPing()
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/health", nil)
		handler.Health(c)
		assert.Equal(t, http.StatusOK, w.Code)

		assert.Contains(t, w.Body.String(), `"status":"ok"`)
		assert.Contains(t, w.Body.String(), `"database":{"status":"ok"`)
		assert.NotContains(t, w.Body.String(), `"redis"`)
	})

	t.Run("Ready Check - DB Fail", func(t *testing.T) {
		mock.ExpectPing().WillReturnError(assert.AnError)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/ready", nil)
		handler.Ready(c)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"database":{"status":"error"`)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthHandler_RedisAndQueue(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	client, redisMock := redismock.NewClientMock()
	handler := NewHandler(db)
	handler.SetRedisClientProvider(func() (redis.Cmdable, error) { return client, nil })
	handler.SetTaskCounter(fakeCounter{"pending": 4, "failed": 1})

	mock.ExpectPing()
	redisMock.ExpectPing().SetErr(errors.New("connection refused"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/health", nil)
	handler.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"status":"degraded"`)
	assert.Contains(t, body, `"redis":{"status":"error"}`)
	assert.Contains(t, body, `"pending":4`)
	assert.Contains(t, body, `"failed":1`)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestHealthHandler_RedisUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(db)
	handler.SetRedisClientProvider(func() (redis.Cmdable, error) { return nil, errors.New("dial failed") })

	mock.ExpectPing()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/health", nil)
	handler.Health(c)

	assert.Contains(t, w.Body.String(), `"redis":{"status":"unavailable"}`)
}

func TestAlive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := gin.New()
	RegisterRoutes(r, NewHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alive", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}
