package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
)

// DBTX is satisfied by *sql.DB, *sql.Tx, *DB and *BreakerDB.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// BreakerDB stops hammering MariaDB once it is clearly unavailable. Only
// infrastructure failures (lost connections, timeouts, deadlocks) count
// against the breaker; constraint errors and empty results do not.
type BreakerDB struct {
	next    DBTX
	name    string
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *observability.Logger
}

func NewBreakerDB(next DBTX, cfg config.CBConfig, metrics *observability.Metrics, logger *observability.Logger) *BreakerDB {
	const name = "mariadb"
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxFailures,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.MaxFailures {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.IsTransientError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn(context.Background(), "Circuit breaker state changed",
					zap.String("db", name),
					zap.String("from_state", from.String()),
					zap.String("to_state", to.String()),
				)
			}
			if metrics == nil {
				return
			}
			stateValue := 0.0
			switch to {
			case gobreaker.StateOpen:
				stateValue = 1.0
			case gobreaker.StateHalfOpen:
				stateValue = 0.5
			}
			metrics.CircuitBreakerState.WithLabelValues(name, to.String()).Set(stateValue)
			metrics.CircuitBreakerEvents.WithLabelValues(name, "state_change", from.String()+"_to_"+to.String()).Inc()
		},
	}

	return &BreakerDB{
		next:    next,
		name:    name,
		cb:      gobreaker.NewCircuitBreaker(settings),
		metrics: metrics,
		logger:  logger,
	}
}

func (b *BreakerDB) record(start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if IsBreakerOpen(err) {
			status = "rejected"
		} else if errors.IsTransientError(err) {
			b.metrics.CircuitBreakerEvents.WithLabelValues(b.name, "failure", string(errors.ClassifyError(err))).Inc()
		}
	}
	b.metrics.CircuitBreakerDuration.WithLabelValues(b.name, status).Observe(time.Since(start).Seconds())
}

// Do runs fn under the breaker. Transactions go through here so a whole
// unit of work is refused while the breaker is open.
func (b *BreakerDB) Do(ctx context.Context, fn func() error) error {
	start := time.Now()
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	b.record(start, err)
	return err
}

func (b *BreakerDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.ExecContext(ctx, query, args...)
	})
	b.record(start, err)
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

func (b *BreakerDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.QueryContext(ctx, query, args...)
	})
	b.record(start, err)
	if err != nil {
		return nil, err
	}
	return rows.(*sql.Rows), nil
}

// QueryRowContext fails fast while the breaker is open. A *sql.Row defers its
// error to Scan, so closed-state failures are not counted here.
func (b *BreakerDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if b.cb.State() == gobreaker.StateOpen {
		b.record(time.Now(), gobreaker.ErrOpenState)
		return newErrorRow(gobreaker.ErrOpenState)
	}
	return b.next.QueryRowContext(ctx, query, args...)
}

func (b *BreakerDB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return b.next.PrepareContext(ctx, query)
}

func (b *BreakerDB) GetState() gobreaker.State {
	return b.cb.State()
}

// IsBreakerOpen reports whether err is a breaker rejection rather than a query failure.
func IsBreakerOpen(err error) bool {
	return stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests)
}

var (
	faultDB       *sql.DB
	faultOnce     sync.Once
	faultSeq      atomic.Uint64
	errorRegistry sync.Map
)

func initFaultDB() {
	faultOnce.Do(func() {
		sql.Register("breaker_fault", &faultDriver{})
		var err error
		faultDB, err = sql.Open("breaker_fault", "")
		if err != nil {
			panic(fmt.Sprintf("failed to initialize fault driver: %v", err))
		}
	})
}

// newErrorRow returns a *sql.Row whose Scan yields err. sql.Row has no public
// constructor, so the error travels through a driver that fails every query.
func newErrorRow(err error) *sql.Row {
	initFaultDB()

	token := strconv.FormatUint(faultSeq.Add(1), 10)
	errorRegistry.Store(token, err)
	time.AfterFunc(time.Minute, func() {
		errorRegistry.Delete(token)
	})

	return faultDB.QueryRow(token)
}

type faultDriver struct{}

func (d *faultDriver) Open(name string) (driver.Conn, error) {
	return &faultConn{}, nil
}

type faultConn struct{}

func (c *faultConn) Prepare(query string) (driver.Stmt, error) {
	if val, ok := errorRegistry.Load(query); ok {
		if err, ok := val.(error); ok {
			return nil, err
		}
	}
	return nil, fmt.Errorf("unknown fault error")
}

func (c *faultConn) Close() error              { return nil }
func (c *faultConn) Begin() (driver.Tx, error) { return nil, fmt.Errorf("not supported") }
