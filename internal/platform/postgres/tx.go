package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/lexis-api/internal/store"
)

// Transactor runs units of work inside PostgreSQL transactions. Every unit
// starts with SET LOCAL lock_timeout so that row locks are never awaited
// indefinitely; a lock wait past the limit surfaces as store.ErrLockTimeout.
type Transactor struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewTransactor creates a Transactor. A zero lockTimeout leaves the server
// default in place.
func NewTransactor(db *sql.DB, lockTimeout time.Duration, logger *slog.Logger) *Transactor {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transactor{
		db:          db,
		lockTimeout: lockTimeout,
		logger:      logger.With(slog.String("component", "transactor")),
	}
}

var _ store.Transactor = (*Transactor)(nil)

// NewStores builds the full store group over db, which may be a *sql.DB or a *sql.Tx.
func NewStores(db store.DBTX, logger *slog.Logger) store.Stores {
	return store.Stores{
		Mastery:    NewPostgresMasteryStore(db, logger),
		Sessions:   NewPostgresSessionStore(db, logger),
		Streaks:    NewPostgresStreakStore(db, logger),
		Accounts:   NewPostgresAccountStore(db, logger),
		CheckIns:   NewPostgresCheckInStore(db, logger),
		Challenges: NewPostgresChallengeStore(db, logger),
		Catalog:    NewPostgresCatalog(db, logger),
	}
}

// WithinTx implements store.Transactor.
func (t *Transactor) WithinTx(ctx context.Context, fn store.UnitFn) error {
	err := store.RunInTransaction(ctx, t.db, func(ctx context.Context, tx *sql.Tx) error {
		if t.lockTimeout > 0 {
			// SET does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return MapError(err)
			}
		}
		return fn(ctx, NewStores(tx, t.logger))
	})
	if err != nil {
		return MapError(err)
	}
	return nil
}
