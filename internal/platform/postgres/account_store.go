package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

// PostgresAccountStore implements the store.AccountStore interface.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAccountStore creates a new PostgreSQL implementation of the AccountStore interface.
func NewPostgresAccountStore(db store.DBTX, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

const accountSelect = `SELECT user_id, daily_goal, point_balance, total_points_earned, created_at, updated_at
	FROM learner_accounts WHERE user_id = $1`

func scanAccount(row rowScanner) (*domain.LearnerAccount, error) {
	var a domain.LearnerAccount
	err := row.Scan(&a.UserID, &a.DailyGoal, &a.PointBalance, &a.TotalPointsEarned, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get implements store.AccountStore.Get
func (s *PostgresAccountStore) Get(ctx context.Context, userID uuid.UUID) (*domain.LearnerAccount, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, accountSelect, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: learner account", store.ErrNotFound)
	}
	if err != nil {
		return nil, MapError(err)
	}
	return a, nil
}

// GetOrCreateForUpdate implements store.AccountStore.GetOrCreateForUpdate
func (s *PostgresAccountStore) GetOrCreateForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	defaultGoal int,
) (*domain.LearnerAccount, error) {
	if defaultGoal <= 0 {
		defaultGoal = domain.DefaultDailyGoal
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO learner_accounts (user_id, daily_goal, point_balance, total_points_earned, created_at, updated_at)
		VALUES ($1, $2, 0, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING`, userID, defaultGoal); err != nil {
		return nil, MapError(err)
	}
	a, err := scanAccount(s.db.QueryRowContext(ctx, accountSelect+` FOR UPDATE`, userID))
	if err != nil {
		return nil, MapError(err)
	}
	return a, nil
}

// Update implements store.AccountStore.Update
func (s *PostgresAccountStore) Update(ctx context.Context, a *domain.LearnerAccount) error {
	if a.PointBalance < 0 {
		return fmt.Errorf("%w: negative point balance", store.ErrInvalidEntity)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE learner_accounts
		SET daily_goal = $2, point_balance = $3, total_points_earned = $4, updated_at = $5
		WHERE user_id = $1`,
		a.UserID, a.DailyGoal, a.PointBalance, a.TotalPointsEarned, a.UpdatedAt)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrNotFound)
}
