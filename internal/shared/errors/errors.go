package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string
type ErrorType string

const (
	// Error Types
	ErrorTypeClient  ErrorType = "client_error"
	ErrorTypeServer  ErrorType = "server_error"
	ErrorTypeNetwork ErrorType = "network_error"

	// Error Codes
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeExpiredToken       ErrorCode = "EXPIRED_TOKEN"
	ErrCodeTooManyRequests    ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Scheduling / reconciliation codes
	ErrCodeMalformedSchedule   ErrorCode = "MALFORMED_SCHEDULE"
	ErrCodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeTransientDependency ErrorCode = "TRANSIENT_DEPENDENCY"
	ErrCodeExecution           ErrorCode = "EXECUTION_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	Details    any
	Err        error
	ErrorType  ErrorType
	StatusCode int
	Retryable  bool
	Version    string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) GetErrorType() ErrorType {
	return e.ErrorType
}

// WithRetryable returns a copy of the error flagged as retryable or not.
func (e *AppError) WithRetryable(retryable bool) *AppError {
	cp := *e
	cp.Retryable = retryable
	return &cp
}

func determineErrorType(code ErrorCode) ErrorType {
	switch code {
	case ErrCodeBadRequest, ErrCodeUnauthorized, ErrCodeForbidden,
		ErrCodeNotFound, ErrCodeInvalidToken, ErrCodeExpiredToken,
		ErrCodeValidation, ErrCodeTooManyRequests,
		ErrCodeMalformedSchedule, ErrCodeSessionNotFound:
		return ErrorTypeClient
	case ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeTransientDependency:
		return ErrorTypeNetwork
	default:
		return ErrorTypeServer
	}
}

// retryableByDefault reports whether a failure with this code is worth another attempt.
func retryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeTransientDependency,
		ErrCodeExecution, ErrCodeDatabaseError, ErrCodeConflict:
		return true
	default:
		return false
	}
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		ErrorType: determineErrorType(code),
		Retryable: retryableByDefault(code),
		Version:   "v1",
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Err:       err,
		ErrorType: determineErrorType(code),
		Retryable: retryableByDefault(code),
		Version:   "v1",
	}
}

func WithDetails(code ErrorCode, message string, details interface{}) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		ErrorType: determineErrorType(code),
		Retryable: retryableByDefault(code),
		Version:   "v1",
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsRetryable reports whether err should be attempted again. Errors that are
// not AppErrors are treated as unexpected faults and retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

var (
	ErrInternal           = New(ErrCodeInternal, "Internal server error")
	ErrNotFound           = New(ErrCodeNotFound, "Resource not found")
	ErrBadRequest         = New(ErrCodeBadRequest, "Bad request")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "Unauthorized")
	ErrForbidden          = New(ErrCodeForbidden, "Forbidden")
	ErrConflict           = New(ErrCodeConflict, "Resource already exists")
	ErrInvalidToken       = New(ErrCodeInvalidToken, "Invalid token")
	ErrExpiredToken       = New(ErrCodeExpiredToken, "Token expired")
	ErrTimeout            = New(ErrCodeTimeout, "Request timeout")
	ErrServiceUnavailable = New(ErrCodeServiceUnavailable, "Service unavailable")
)
