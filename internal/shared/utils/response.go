package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

// retryAfterSeconds is advertised on TRANSIENT_DEPENDENCY responses.
const retryAfterSeconds = "5"

type Response struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Version string         `json:"version"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Type    string `json:"type"`
}

func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Version: "v1",
	})
}

func Error(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "An unexpected error occurred")
	}
	// Recorded for ErrorHandlingMiddleware, which logs what was rendered here.
	if err != nil {
		_ = c.Error(err)
	}

	// Get correlation IDs from context
	traceID := c.GetString(string(observability.TraceIDKey))
	requestID := c.GetString(string(observability.RequestIDKey))

	// Shared sentinel errors must not collect per-request ids.
	details := appErr.Details
	if details == nil {
		details = map[string]string{}
	}
	if base, ok := details.(map[string]string); ok {
		merged := make(map[string]string, len(base)+2)
		for k, v := range base {
			merged[k] = v
		}
		if traceID != "" {
			merged["trace_id"] = traceID
		}
		if requestID != "" {
			merged["request_id"] = requestID
		}
		details = merged
	}

	statusCode := getHTTPStatusCode(appErr.Code)
	if appErr.Code == errors.ErrCodeTransientDependency {
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorResponse{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: details,
			Type:    string(appErr.ErrorType),
		},
		Version: "v1",
	})
}

func getHTTPStatusCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotFound, errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeBadRequest, errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeMalformedSchedule:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnauthorized, errors.ErrCodeInvalidToken, errors.ErrCodeExpiredToken:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeTransientDependency:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
