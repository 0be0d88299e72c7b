package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
)

// DB is the retrying handle used by every query outside a transaction.
type DB struct {
	*sql.DB
	retryConfig *errors.RetryConfig
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// DSN builds the driver connection string. Sessions run in UTC so DATETIME
// columns round-trip as absolute instants.
func DSN(cfg *config.DatabaseConfig) string {
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("loc", "UTC")
	params.Set("time_zone", "'+00:00'")
	params.Set("charset", "utf8mb4")
	params.Set("collation", "utf8mb4_unicode_ci")
	params.Set("interpolateParams", "true")
	params.Set("timeout", "10s")
	params.Set("readTimeout", "30s")
	params.Set("writeTimeout", "30s")

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		params.Encode(),
	)
}

func NewMariaDB(ctx context.Context, cfg *config.DatabaseConfig, metrics *observability.Metrics, logger *observability.Logger) (*DB, error) {
	dsn := DSN(cfg)
	retryCfg := errors.DefaultRetryConfig().MergeWith(&cfg.Retry)

	var db *sql.DB
	err := errors.RetryOperation(ctx, "db_connection", func(attempt uint64) error {
		var connectErr error
		db, connectErr = sql.Open("mysql", dsn)
		if connectErr != nil {
			return connectErr
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if connectErr = db.PingContext(pingCtx); connectErr != nil {
			_ = db.Close()
			return fmt.Errorf("failed to ping database: %w", connectErr)
		}
		return nil
	}, retryCfg, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", retryCfg.MaxRetries, err)
	}

	return Wrap(db, retryCfg, metrics, logger), nil
}

// Wrap decorates an open pool with retries, metrics and error logging.
func Wrap(db *sql.DB, retryCfg *errors.RetryConfig, metrics *observability.Metrics, logger *observability.Logger) *DB {
	if retryCfg == nil {
		retryCfg = errors.DefaultRetryConfig()
	}
	return &DB{
		DB:          db,
		retryConfig: retryCfg,
		metrics:     metrics,
		logger:      logger,
	}
}

type TxFunc func(*sql.Tx) error

// WithTx runs fn in a READ COMMITTED transaction, retrying the whole unit on
// deadlocks and lost connections.
func (db *DB) WithTx(ctx context.Context, fn TxFunc) error {
	return errors.WithRetryTx(ctx, db.DB, fn, db.retryConfig, db.metrics, db.logger)
}

func (db *DB) observe(ctx context.Context, kind, query string, start time.Time, err error) {
	if db.metrics != nil {
		db.metrics.DatabaseQueryDuration.WithLabelValues(kind, "").Observe(time.Since(start).Seconds())
		if err != nil {
			db.metrics.DatabaseQueryErrors.WithLabelValues(kind, "", string(errors.ClassifyError(err))).Inc()
		} else {
			db.metrics.DatabaseQuerySuccess.WithLabelValues(kind, "").Inc()
		}
	}
	if err != nil {
		errors.LogDBError(ctx, db.logger, err, kind, query)
	}
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := errors.RetryOperation(ctx, "exec", func(attempt uint64) error {
		start := time.Now()
		var execErr error
		result, execErr = db.DB.ExecContext(ctx, query, args...)
		db.observe(ctx, "exec", query, start, execErr)
		return execErr
	}, db.retryConfig, db.metrics, db.logger)
	return result, err
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := errors.RetryOperation(ctx, "query", func(attempt uint64) error {
		start := time.Now()
		var queryErr error
		rows, queryErr = db.DB.QueryContext(ctx, query, args...)
		db.observe(ctx, "query", query, start, queryErr)
		return queryErr
	}, db.retryConfig, db.metrics, db.logger)
	return rows, err
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// RecordStats reports pool usage into the connection gauges.
func (db *DB) RecordStats() {
	if db.metrics == nil {
		return
	}
	stats := db.DB.Stats()
	db.metrics.RecordDatabaseStats(stats.OpenConnections, stats.InUse, stats.Idle)
}
