package absences

import (
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

var (
	ErrInvalidSessionKind = errors.New(errors.ErrCodeBadRequest, "Session kind must be course or exam")
	ErrInvalidSessionID   = errors.New(errors.ErrCodeBadRequest, "Session id must be a positive integer")
	ErrLockContended      = errors.New(errors.ErrCodeTransientDependency, "Another reconciliation of this session is running")
)

// MalformedScheduleError reports session timing that cannot be turned into
// an instant. It is never retried.
func MalformedScheduleError(field, value string, err error) *errors.AppError {
	appErr := errors.Wrap(err, errors.ErrCodeMalformedSchedule, "Session "+field+" is missing or malformed")
	appErr.Details = map[string]string{"field": field, "value": value}
	return appErr
}

// SessionNotFoundError is terminal: retrying will not bring the session back.
func SessionNotFoundError(ref SessionRef, err error) *errors.AppError {
	appErr := errors.Wrap(err, errors.ErrCodeSessionNotFound, "Session "+ref.String()+" does not exist")
	appErr.Details = map[string]string{"session": ref.String()}
	return appErr
}

func TransientDependencyError(err error, message string) *errors.AppError {
	return errors.Wrap(err, errors.ErrCodeTransientDependency, message)
}

// ExecutionError wraps an unexpected fault. It is retried like a transient
// failure up to the attempt cap.
func ExecutionError(err error, message string) *errors.AppError {
	return errors.Wrap(err, errors.ErrCodeExecution, message)
}
