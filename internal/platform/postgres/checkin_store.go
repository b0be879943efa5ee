package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/store"
)

const (
	activityColumns = `id, title, status, start_date, end_date, base_points, allow_makeup,
	makeup_cost, max_makeup_days, rules, created_at, updated_at`

	checkInRecordColumns = `id, user_id, check_in_id, date, status, type, is_makeup,
	makeup_cost, points_earned, streak_days, created_at`
)

// PostgresCheckInStore implements the store.CheckInStore interface.
// Activity rules are stored as JSONB and decoded into domain.CheckInRules.
type PostgresCheckInStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCheckInStore creates a new PostgreSQL implementation of the CheckInStore interface.
func NewPostgresCheckInStore(db store.DBTX, logger *slog.Logger) *PostgresCheckInStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCheckInStore{
		db:     db,
		logger: logger.With(slog.String("component", "checkin_store")),
	}
}

var _ store.CheckInStore = (*PostgresCheckInStore)(nil)

// CreateActivity implements store.CheckInStore.CreateActivity
func (s *PostgresCheckInStore) CreateActivity(ctx context.Context, a *domain.CheckInActivity) error {
	rules, err := json.Marshal(a.Rules)
	if err != nil {
		return fmt.Errorf("%w: encode rules: %w", store.ErrInvalidEntity, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkin_activities (`+activityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Title, string(a.Status), dateArg(a.StartDate), nullDateArg(a.EndDate), a.BasePoints,
		a.AllowMakeup, a.MakeupCost, a.MaxMakeupDays, rules, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// GetActivity implements store.CheckInStore.GetActivity
func (s *PostgresCheckInStore) GetActivity(ctx context.Context, id uuid.UUID) (*domain.CheckInActivity, error) {
	var a domain.CheckInActivity
	var status string
	var endDate sql.NullTime
	var rules []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM checkin_activities WHERE id = $1`, id,
	).Scan(
		&a.ID, &a.Title, &status, &a.StartDate, &endDate, &a.BasePoints, &a.AllowMakeup,
		&a.MakeupCost, &a.MaxMakeupDays, &rules, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrActivityNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}

	a.Status = domain.ActivityStatus(status)
	a.StartDate = calendarDay(a.StartDate)
	if endDate.Valid {
		end := calendarDay(endDate.Time)
		a.EndDate = &end
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &a.Rules); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Error("malformed check-in rules",
				slog.String("activity_id", id.String()),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: decode rules: %w", store.ErrInvalidEntity, err)
		}
	}
	return &a, nil
}

// UpdateActivity implements store.CheckInStore.UpdateActivity
func (s *PostgresCheckInStore) UpdateActivity(ctx context.Context, a *domain.CheckInActivity) error {
	rules, err := json.Marshal(a.Rules)
	if err != nil {
		return fmt.Errorf("%w: encode rules: %w", store.ErrInvalidEntity, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE checkin_activities SET
			title = $2, status = $3, start_date = $4, end_date = $5, base_points = $6,
			allow_makeup = $7, makeup_cost = $8, max_makeup_days = $9, rules = $10, updated_at = $11
		WHERE id = $1`,
		a.ID, a.Title, string(a.Status), dateArg(a.StartDate), nullDateArg(a.EndDate), a.BasePoints,
		a.AllowMakeup, a.MakeupCost, a.MaxMakeupDays, rules, a.UpdatedAt,
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrActivityNotFound)
}

func scanCheckInRecord(row rowScanner) (*domain.CheckInRecord, error) {
	var r domain.CheckInRecord
	var status, typ string
	err := row.Scan(
		&r.ID, &r.UserID, &r.CheckInID, &r.Date, &status, &typ, &r.IsMakeup,
		&r.MakeupCost, &r.PointsEarned, &r.StreakDays, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Date = calendarDay(r.Date)
	r.Status = domain.CheckInStatus(status)
	r.Type = domain.CheckInType(typ)
	return &r, nil
}

// FindRecord implements store.CheckInStore.FindRecord
func (s *PostgresCheckInStore) FindRecord(
	ctx context.Context,
	userID, checkInID uuid.UUID,
	day time.Time,
) (*domain.CheckInRecord, error) {
	r, err := scanCheckInRecord(s.db.QueryRowContext(ctx, `
		SELECT `+checkInRecordColumns+` FROM checkin_records
		WHERE user_id = $1 AND check_in_id = $2 AND date = $3 AND status <> 'CANCELLED'`,
		userID, checkInID, dateArg(day)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCheckInRecordNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return r, nil
}

// CreateRecord implements store.CheckInStore.CreateRecord
func (s *PostgresCheckInStore) CreateRecord(ctx context.Context, r *domain.CheckInRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkin_records (`+checkInRecordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.UserID, r.CheckInID, dateArg(r.Date), string(r.Status), string(r.Type), r.IsMakeup,
		r.MakeupCost, r.PointsEarned, r.StreakDays, r.CreatedAt,
	)
	if err != nil {
		return MapUniqueViolation(err, store.ErrCheckInRecordExists)
	}
	return nil
}

// ListRecords implements store.CheckInStore.ListRecords
func (s *PostgresCheckInStore) ListRecords(
	ctx context.Context,
	userID uuid.UUID,
	from, to time.Time,
) ([]domain.CheckInRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+checkInRecordColumns+` FROM checkin_records
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC, created_at ASC`,
		userID, dateArg(from), dateArg(to))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.CheckInRecord
	for rows.Next() {
		r, err := scanCheckInRecord(rows)
		if err != nil {
			return nil, MapError(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return records, nil
}
