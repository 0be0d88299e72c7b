package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	// 1. Test New()
	err := New(ErrCodeNotFound, "Item missing")
	assert.Equal(t, ErrCodeNotFound, err.Code)
	assert.Equal(t, "Item missing", err.Message)
	assert.Equal(t, "NOT_FOUND: Item missing", err.Error())

	// 2. Test Wrap()
	origErr := errors.New("db connection failed")
	wrappedErr := Wrap(origErr, ErrCodeInternal, "Database error")
	assert.Equal(t, origErr, wrappedErr.Unwrap())
	assert.Contains(t, wrappedErr.Error(), "INTERNAL_ERROR: Database error")
	assert.Contains(t, wrappedErr.Error(), "db connection failed")

	// 3. Test WithDetails()
	details := map[string]string{"field": "email"}
	detailErr := WithDetails(ErrCodeValidation, "Invalid input", details)
	assert.Equal(t, details, detailErr.Details)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		code      ErrorCode
		errType   ErrorType
		retryable bool
	}{
		{ErrCodeMalformedSchedule, ErrorTypeClient, false},
		{ErrCodeSessionNotFound, ErrorTypeClient, false},
		{ErrCodeTransientDependency, ErrorTypeNetwork, true},
		{ErrCodeExecution, ErrorTypeServer, true},
		{ErrCodeDatabaseError, ErrorTypeServer, true},
		{ErrCodeValidation, ErrorTypeClient, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			err := New(tc.code, "x")
			assert.Equal(t, tc.errType, err.GetErrorType())
			assert.Equal(t, tc.retryable, err.Retryable)
		})
	}
}

func TestWithRetryable_CopiesError(t *testing.T) {
	base := New(ErrCodeTransientDependency, "lock held")
	terminal := base.WithRetryable(false)

	assert.True(t, base.Retryable)
	assert.False(t, terminal.Retryable)
	assert.Equal(t, base.Code, terminal.Code)
}

func TestAsAppErrorAndIsRetryable(t *testing.T) {
	inner := New(ErrCodeSessionNotFound, "Session not found")
	wrapped := fmt.Errorf("task 42: %w", inner)

	appErr, ok := AsAppError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrCodeSessionNotFound, appErr.Code)
	assert.True(t, errors.Is(wrapped, New(ErrCodeSessionNotFound, "other message")))

	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(wrapped))
	assert.True(t, IsRetryable(errors.New("unexpected")))
	assert.True(t, IsRetryable(New(ErrCodeExecution, "boom")))
}
