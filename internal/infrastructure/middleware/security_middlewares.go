package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/utils"
)

// SessionRef returns the "<kind>:<id>" a request targets: the operator
// routes carry it in the path, the session hook stores it once the event
// body is bound.
func SessionRef(c *gin.Context) string {
	if kind, id := c.Param("kind"), c.Param("id"); kind != "" && id != "" {
		return kind + ":" + id
	}
	return c.GetString(string(observability.SessionRefKey))
}

func route(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// requestFields is shared by the access log and the error log. The principal
// itself rides on the request context once Authenticate has run.
func requestFields(logger *observability.Logger, c *gin.Context) []zap.Field {
	fields := []zap.Field{
		logger.Field("method", c.Request.Method),
		logger.Field("route", route(c)),
	}
	if role, err := GetCurrentRole(c); err == nil {
		fields = append(fields, logger.Field("role", role))
	}
	if ref := SessionRef(c); ref != "" {
		fields = append(fields, logger.Field("session_ref", ref))
	}
	return fields
}

// ErrorHandlingMiddleware logs the last error recorded on the context and
// renders it when the handler did not.
func ErrorHandlingMiddleware(logger *observability.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr, ok := errors.AsAppError(c.Errors.Last().Err)
		if !ok {
			appErr = errors.Wrap(c.Errors.Last().Err, errors.ErrCodeInternal, "Internal server error")
		}

		if metrics != nil {
			metrics.RecordError(appErr.ErrorType, c.Request.Method, route(c))
		}

		ctx := c.Request.Context()
		fields := append(requestFields(logger, c),
			logger.Field("error_code", appErr.Code),
			logger.Field("retryable", appErr.Retryable),
		)
		if appErr.Err != nil {
			fields = append(fields, logger.Field("cause", appErr.Err.Error()))
		}

		switch appErr.Code {
		case errors.ErrCodeSessionNotFound:
			logger.Info(ctx, "Session not found", fields...)
		case errors.ErrCodeMalformedSchedule:
			logger.Warn(ctx, "Session schedule is malformed", append(fields, logger.Field("details", appErr.Details))...)
		case errors.ErrCodeTransientDependency:
			logger.Warn(ctx, "Dependency unavailable, caller may retry", fields...)
		default:
			if appErr.ErrorType == errors.ErrorTypeServer {
				logger.Error(ctx, "Request failed", fields...)
			} else {
				logger.Warn(ctx, "Request rejected", fields...)
			}
		}

		if !c.Writer.Written() {
			utils.Error(c, appErr)
		}
	}
}

// RequestIDMiddleware assigns the request and trace ids. A caller supplied
// X-Request-ID is kept so the session hook can be correlated end to end.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = requestID
		}

		ctx := context.WithValue(c.Request.Context(), observability.RequestIDKey, requestID)
		ctx = context.WithValue(ctx, observability.TraceIDKey, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(string(observability.RequestIDKey), requestID)
		c.Set(string(observability.TraceIDKey), traceID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// TimeoutMiddleware bounds the request context; reconciliation and its
// storage calls abort once it expires.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func NewCORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  append(cfg.AllowedHeaders, "X-Request-ID"),
		ExposeHeaders: []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			corsCfg.AllowOrigins = nil
			break
		}
	}
	return cors.New(corsCfg)
}

// SecurityHeadersMiddleware sets the headers a JSON-only API needs.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

func LoggerMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fields := append(requestFields(logger, c),
			logger.Field("status", status),
			logger.Field("latency_ms", time.Since(start).Milliseconds()),
			logger.Field("client_ip", c.ClientIP()),
		)

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "Request completed with server error", fields...)
		case status >= 400:
			logger.Warn(ctx, "Request completed with client error", fields...)
		default:
			logger.Info(ctx, "Request completed", fields...)
		}
	}
}

func MetricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := route(c)
		method := c.Request.Method
		metrics.HttpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		if c.Request.ContentLength > 0 {
			metrics.HttpRequestSize.WithLabelValues(method, path).Observe(float64(c.Request.ContentLength))
		}
		if size := c.Writer.Size(); size > 0 {
			metrics.HttpResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// PanicRecoveryMiddleware turns a panic into the standard INTERNAL_ERROR envelope.
func PanicRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "Panic recovered",
					append(requestFields(logger, c), zap.Any("panic", rec))...)
				utils.Error(c, errors.ErrInternal)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// BodyLimitMiddleware caps the request body; session events are small.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
