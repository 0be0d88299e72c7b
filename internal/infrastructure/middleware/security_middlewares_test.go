package middleware

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/security"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())

	r.GET("/events", func(c *gin.Context) {
		reqID := c.Writer.Header().Get("X-Request-ID")
		assert.NotEmpty(t, reqID)

		val, exists := c.Get(string(observability.RequestIDKey))
		assert.True(t, exists)
		assert.Equal(t, reqID, val)
		assert.Equal(t, reqID, c.Request.Context().Value(observability.RequestIDKey))

		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_KeepsCallerID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/events", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("X-Request-ID", "crud-app-7f3a")
	r.ServeHTTP(w, req)

	assert.Equal(t, "crud-app-7f3a", w.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_TraceID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())

	var traces []any
	r.GET("/trace", func(c *gin.Context) {
		traces = append(traces, c.Request.Context().Value(observability.TraceIDKey))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/trace", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/trace", nil)
	req.Header.Set("X-Request-ID", "req-2")
	req.Header.Set("X-Trace-ID", "trace-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []any{"req-1", "trace-9"}, traces)
}

func TestTimeoutMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TimeoutMiddleware(50 * time.Millisecond))

	r.GET("/slow", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodyLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimitMiddleware(8))
	r.POST("/session-events", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session-events", strings.NewReader(`{"id":1}`)))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session-events", strings.NewReader(`{"id":1,"kind":"course"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/alive", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alive", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(PanicRecoveryMiddleware(observability.NewNopLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestErrorHandlingMiddleware(t *testing.T) {
	metrics := observability.NewTestMetrics()
	r := gin.New()
	r.Use(ErrorHandlingMiddleware(observability.NewNopLogger(), metrics))
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(errors.New(errors.ErrCodeSessionNotFound, "Session not found"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_NOT_FOUND")
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.ErrorCount))
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := observability.NewTestMetrics()
	r := gin.New()
	r.Use(MetricsMiddleware(metrics))
	r.GET("/api/v1/reconciliation-tasks/:uuid", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation-tasks/abc", nil))

	count := testutil.ToFloat64(metrics.HttpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/reconciliation-tasks/:uuid", "200"))
	assert.Equal(t, float64(1), count)
}

// asOperator mimics Authenticate for a given principal and role.
func asOperator(principal, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), observability.PrincipalKey, principal)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(security.PrincipalKey), principal)
		c.Set(string(security.RoleKey), role)
		c.Next()
	}
}

func TestLoggerMiddleware_OperatorRoute(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(LoggerMiddleware(observability.NewLoggerFromCore(core)))
	r.POST("/api/v1/reconciliations/:kind/:id", asOperator("ops@um6ss", "admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/reconciliations/exam/42", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Request completed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "ops@um6ss", fields["principal"])
	assert.Equal(t, "admin", fields["role"])
	assert.Equal(t, "exam:42", fields["session_ref"])
	assert.Equal(t, "/api/v1/reconciliations/:kind/:id", fields["route"])
}

func TestLoggerMiddleware_SessionHook(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(LoggerMiddleware(observability.NewLoggerFromCore(core)))
	r.POST("/api/v1/session-events", asOperator("crud-app", "service"), func(c *gin.Context) {
		c.Set(string(observability.SessionRefKey), "course:7")
		c.Status(http.StatusAccepted)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/session-events", nil))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "crud-app", fields["principal"])
	assert.Equal(t, "service", fields["role"])
	assert.Equal(t, "course:7", fields["session_ref"])
}

func TestErrorHandlingMiddleware_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		level      zapcore.Level
		message    string
		retryAfter string
	}{
		{
			name:    "session not found",
			err:     errors.New(errors.ErrCodeSessionNotFound, "Session not found"),
			status:  http.StatusNotFound,
			level:   zap.InfoLevel,
			message: "Session not found",
		},
		{
			name:    "malformed schedule",
			err:     errors.WithDetails(errors.ErrCodeMalformedSchedule, "Session timing cannot be parsed", map[string]string{"end_time": "25:99"}),
			status:  http.StatusUnprocessableEntity,
			level:   zap.WarnLevel,
			message: "Session schedule is malformed",
		},
		{
			name:       "transient dependency wrapped",
			err:        fmt.Errorf("reconcile exam:42: %w", errors.New(errors.ErrCodeTransientDependency, "Failed to acquire session lock")),
			status:     http.StatusServiceUnavailable,
			level:      zap.WarnLevel,
			message:    "Dependency unavailable, caller may retry",
			retryAfter: "5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			metrics := observability.NewTestMetrics()
			r := gin.New()
			r.Use(ErrorHandlingMiddleware(observability.NewLoggerFromCore(core), metrics))
			r.POST("/api/v1/reconciliations/:kind/:id", asOperator("ops@um6ss", "admin"), func(c *gin.Context) {
				utils.Error(c, tt.err)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reconciliations/exam/42", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.message, entry.Message)
			fields := entry.ContextMap()
			assert.Equal(t, "admin", fields["role"])
			assert.Equal(t, "ops@um6ss", fields["principal"])
			assert.Equal(t, "exam:42", fields["session_ref"])
			assert.Equal(t, 1, testutil.CollectAndCount(metrics.ErrorCount))
		})
	}
}

func TestErrorHandlingMiddleware_PlainErrorIsInternal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware(observability.NewLoggerFromCore(core), nil))
	r.GET("/api/v1/reconciliation-tasks", func(c *gin.Context) {
		_ = c.Error(stderrors.New("connection reset"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation-tasks", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
	assert.Equal(t, "connection reset", logs.All()[0].ContextMap()["cause"])
}
