package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"

	"github.com/go-sql-driver/mysql"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	apperrors "github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

type DBErrorType string

const (
	ErrorTypeDeadlock            DBErrorType = "deadlock"
	ErrorTypeConnectionTimeout   DBErrorType = "connection_timeout"
	ErrorTypeConnectionRefused   DBErrorType = "connection_refused"
	ErrorTypeConstraintViolation DBErrorType = "constraint_violation"
	ErrorTypeDuplicateKey        DBErrorType = "duplicate_key"
	ErrorTypeForeignKeyViolation DBErrorType = "foreign_key_violation"
	ErrorTypeQueryTimeout        DBErrorType = "query_timeout"
	ErrorTypeNoRows              DBErrorType = "no_rows"
	ErrorTypeUnknown             DBErrorType = "unknown"
)

func ClassifyError(err error) DBErrorType {
	if err == nil {
		return ""
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return ErrorTypeQueryTimeout
	case stderrors.Is(err, sql.ErrNoRows):
		return ErrorTypeNoRows
	case stderrors.Is(err, sql.ErrConnDone), stderrors.Is(err, driver.ErrBadConn), stderrors.Is(err, mysql.ErrInvalidConn):
		return ErrorTypeConnectionRefused
	}

	var mysqlErr *mysql.MySQLError
	if !stderrors.As(err, &mysqlErr) {
		return ErrorTypeUnknown
	}

	switch mysqlErr.Number {
	case 1213, 1205, 1206: // deadlock, lock wait timeout, lock table full
		return ErrorTypeDeadlock
	case 2003, 2005, 2006: // can't connect, unknown host, server gone away
		return ErrorTypeConnectionRefused
	case 2013: // lost connection during query
		return ErrorTypeConnectionTimeout
	case 1062:
		return ErrorTypeDuplicateKey
	case 1451, 1452:
		return ErrorTypeForeignKeyViolation
	case 1048, 1146: // null into not-null column, table not found
		return ErrorTypeConstraintViolation
	case 3024, 1969: // max_execution_time (MySQL, MariaDB)
		return ErrorTypeQueryTimeout
	}

	return ErrorTypeUnknown
}

func IsTransientError(err error) bool {
	switch ClassifyError(err) {
	case ErrorTypeDeadlock, ErrorTypeConnectionTimeout, ErrorTypeConnectionRefused, ErrorTypeQueryTimeout:
		return true
	default:
		return false
	}
}

// ToAppError maps a storage failure onto the application taxonomy. Transient
// failures become TRANSIENT_DEPENDENCY so the task queue retries them; anything
// else is a DATABASE_ERROR. An AppError passes through unchanged.
func ToAppError(err error, message string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	if IsTransientError(err) || isBreakerRejection(err) {
		return apperrors.Wrap(err, apperrors.ErrCodeTransientDependency, message)
	}
	if ClassifyError(err) == ErrorTypeNoRows {
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, message)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, message)
}

// isBreakerRejection matches calls refused by an open or probing circuit breaker.
func isBreakerRejection(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}

func LogDBError(ctx context.Context, logger *observability.Logger, err error, operation, query string) {
	if logger == nil {
		return
	}
	errType := ClassifyError(err)

	fields := []zap.Field{
		logger.Field("error_type", errType),
		logger.Field("original_error", err.Error()),
		logger.Field("operation", operation),
		logger.Field("query", query),
	}

	switch errType {
	case ErrorTypeNoRows:
		return
	case ErrorTypeDeadlock, ErrorTypeQueryTimeout, ErrorTypeConnectionTimeout:
		logger.Warn(ctx, "Transient database error", fields...)
	default:
		logger.Error(ctx, "Persistent database error", fields...)
	}
}
