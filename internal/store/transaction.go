package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/lexis-api/internal/platform/logger"
)

// Stores groups the stores of one unit of work. Every store in the group
// reads and writes through the same transaction.
type Stores struct {
	Mastery    MasteryRecordStore
	Sessions   SessionStore
	Streaks    StreakStore
	Accounts   AccountStore
	CheckIns   CheckInStore
	Challenges ChallengeStore
	Catalog    Catalog
}

// UnitFn is a function that executes within a unit of work.
// Returning an error discards every change the function made.
type UnitFn func(ctx context.Context, s Stores) error

// Transactor runs units of work atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn UnitFn) error
}

// TxFn runs inside a *sql.Tx opened by RunInTransaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction commits tx when fn returns nil and rolls it back when fn
// fails or panics. A panic is re-raised after the rollback. The error from fn
// is returned as is; a failed rollback is reported alongside it.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("begin transaction: %w", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		p := recover()
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("rollback transaction",
				slog.String("error", rbErr.Error()),
				slog.Any("panic", p))
			if p == nil {
				err = fmt.Errorf("rollback transaction: %v (unit error: %w)", rbErr, err)
			}
		}
		if p != nil {
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		log.Debug("unit of work failed, rolling back", slog.String("error", err.Error()))
		return err
	}

	done = true
	if err = tx.Commit(); err != nil {
		log.Error("commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return nil
}
