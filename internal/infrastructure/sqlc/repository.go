package sqlc

import (
	"context"
	"database/sql"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database"
)

// Repository pairs the generated queries with the retrying pool. Reads go
// through the circuit breaker when one is configured.
type Repository struct {
	db      *database.DB
	breaker *database.BreakerDB
	*Queries
}

func NewRepository(db *database.DB, breaker *database.BreakerDB) *Repository {
	var handle DBTX = db
	if breaker != nil {
		handle = breaker
	}
	return &Repository{
		db:      db,
		breaker: breaker,
		Queries: New(handle),
	}
}

// WithTransaction runs fn in one READ COMMITTED transaction. Transient
// failures replay the whole unit, so fn must not keep state between calls.
func (r *Repository) WithTransaction(ctx context.Context, fn func(*Queries) error) error {
	run := func() error {
		return r.db.WithTx(ctx, func(tx *sql.Tx) error {
			return fn(r.Queries.WithTx(tx))
		})
	}
	if r.breaker == nil {
		return run()
	}
	return r.breaker.Do(ctx, run)
}

// Ping checks the underlying pool.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
