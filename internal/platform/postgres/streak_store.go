package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

// PostgresStreakStore implements the store.StreakStore interface.
type PostgresStreakStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStreakStore creates a new PostgreSQL implementation of the StreakStore interface.
func NewPostgresStreakStore(db store.DBTX, logger *slog.Logger) *PostgresStreakStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStreakStore{
		db:     db,
		logger: logger.With(slog.String("component", "streak_store")),
	}
}

var _ store.StreakStore = (*PostgresStreakStore)(nil)

func scanStreak(row rowScanner) (*domain.StreakState, error) {
	var st domain.StreakState
	var last sql.NullTime
	if err := row.Scan(&st.UserID, &st.CurrentStreak, &st.MaxStreak, &last, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if last.Valid {
		day := calendarDay(last.Time)
		st.LastActivityDate = &day
	}
	return &st, nil
}

const streakSelect = `SELECT user_id, current_streak, max_streak, last_activity_date, updated_at
	FROM streaks WHERE user_id = $1`

// Get implements store.StreakStore.Get
func (s *PostgresStreakStore) Get(ctx context.Context, userID uuid.UUID) (*domain.StreakState, error) {
	st, err := scanStreak(s.db.QueryRowContext(ctx, streakSelect, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewStreakState(userID), nil
	}
	if err != nil {
		return nil, MapError(err)
	}
	return st, nil
}

// GetOrCreateForUpdate implements store.StreakStore.GetOrCreateForUpdate
func (s *PostgresStreakStore) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*domain.StreakState, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO streaks (user_id, current_streak, max_streak, updated_at)
		VALUES ($1, 0, 0, NOW())
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, MapError(err)
	}
	st, err := scanStreak(s.db.QueryRowContext(ctx, streakSelect+` FOR UPDATE`, userID))
	if err != nil {
		return nil, MapError(err)
	}
	return st, nil
}

// Update implements store.StreakStore.Update
func (s *PostgresStreakStore) Update(ctx context.Context, st *domain.StreakState) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE streaks
		SET current_streak = $2, max_streak = $3, last_activity_date = $4, updated_at = $5
		WHERE user_id = $1`,
		st.UserID, st.CurrentStreak, st.MaxStreak, nullDateArg(st.LastActivityDate), st.UpdatedAt)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrNotFound)
}

// AddActivityDay implements store.StreakStore.AddActivityDay
func (s *PostgresStreakStore) AddActivityDay(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_days (user_id, day) VALUES ($1, $2)
		ON CONFLICT (user_id, day) DO NOTHING`, userID, dateArg(day))
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}
	return n == 1, nil
}

// ListActivityDays implements store.StreakStore.ListActivityDays
func (s *PostgresStreakStore) ListActivityDays(ctx context.Context, userID uuid.UUID) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day FROM activity_days WHERE user_id = $1 ORDER BY day ASC`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, MapError(err)
		}
		days = append(days, calendarDay(d))
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return days, nil
}
