package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/store"
)

const masteryColumns = `user_id, item_id, mastery_level, study_count, correct_count, wrong_count,
	accuracy_rate, ease_factor, review_interval_days, repetition_count,
	total_study_seconds, last_study_seconds, is_favorite, is_difficult,
	first_learned_at, last_reviewed_at, next_review_at, created_at, updated_at`

// PostgresMasteryStore implements the store.MasteryRecordStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMasteryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMasteryStore creates a new PostgreSQL implementation of the MasteryRecordStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresMasteryStore(db store.DBTX, logger *slog.Logger) *PostgresMasteryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMasteryStore{
		db:     db,
		logger: logger.With(slog.String("component", "mastery_store")),
	}
}

// Ensure PostgresMasteryStore implements store.MasteryRecordStore interface
var _ store.MasteryRecordStore = (*PostgresMasteryStore)(nil)

func scanMasteryRecord(row rowScanner) (*domain.MasteryRecord, error) {
	var rec domain.MasteryRecord
	var level int
	var firstLearned, lastReviewed sql.NullTime
	err := row.Scan(
		&rec.UserID, &rec.ItemID, &level, &rec.StudyCount, &rec.CorrectCount, &rec.WrongCount,
		&rec.AccuracyRate, &rec.EaseFactor, &rec.ReviewIntervalDays, &rec.RepetitionCount,
		&rec.TotalStudySeconds, &rec.LastStudySeconds, &rec.IsFavorite, &rec.IsDifficult,
		&firstLearned, &lastReviewed, &rec.NextReviewAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.MasteryLevel = domain.MasteryLevel(level)
	rec.FirstLearnedAt = timePtr(firstLearned)
	rec.LastReviewedAt = timePtr(lastReviewed)
	return &rec, nil
}

// Create implements store.MasteryRecordStore.Create
func (s *PostgresMasteryStore) Create(ctx context.Context, rec *domain.MasteryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mastery_records (`+masteryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		masteryArgs(rec)...,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create mastery record",
			slog.String("user_id", rec.UserID.String()),
			slog.String("item_id", rec.ItemID.String()),
			slog.String("error", err.Error()))
		return MapUniqueViolation(err, store.ErrMasteryRecordExists)
	}
	return nil
}

func masteryArgs(rec *domain.MasteryRecord) []any {
	return []any{
		rec.UserID, rec.ItemID, int(rec.MasteryLevel), rec.StudyCount, rec.CorrectCount, rec.WrongCount,
		rec.AccuracyRate, rec.EaseFactor, rec.ReviewIntervalDays, rec.RepetitionCount,
		rec.TotalStudySeconds, rec.LastStudySeconds, rec.IsFavorite, rec.IsDifficult,
		nullTime(rec.FirstLearnedAt), nullTime(rec.LastReviewedAt), rec.NextReviewAt, rec.CreatedAt, rec.UpdatedAt,
	}
}

func (s *PostgresMasteryStore) get(ctx context.Context, userID, itemID uuid.UUID, suffix string) (*domain.MasteryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+masteryColumns+` FROM mastery_records WHERE user_id = $1 AND item_id = $2`+suffix,
		userID, itemID)
	rec, err := scanMasteryRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrMasteryRecordNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return rec, nil
}

// Get implements store.MasteryRecordStore.Get
func (s *PostgresMasteryStore) Get(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error) {
	return s.get(ctx, userID, itemID, "")
}

// GetForUpdate implements store.MasteryRecordStore.GetForUpdate
func (s *PostgresMasteryStore) GetForUpdate(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error) {
	return s.get(ctx, userID, itemID, " FOR UPDATE")
}

// GetOrCreateForUpdate implements store.MasteryRecordStore.GetOrCreateForUpdate.
// The insert is a no-op when the row exists; the following SELECT then
// blocks on a concurrent inserter's lock until it commits.
func (s *PostgresMasteryStore) GetOrCreateForUpdate(
	ctx context.Context,
	seed *domain.MasteryRecord,
) (*domain.MasteryRecord, bool, error) {
	if err := seed.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO mastery_records (`+masteryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (user_id, item_id) DO NOTHING`,
		masteryArgs(seed)...,
	)
	if err != nil {
		return nil, false, MapError(err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, MapError(err)
	}

	rec, err := s.GetForUpdate(ctx, seed.UserID, seed.ItemID)
	if err != nil {
		return nil, false, err
	}
	return rec, inserted == 1, nil
}

// Update implements store.MasteryRecordStore.Update
func (s *PostgresMasteryStore) Update(ctx context.Context, rec *domain.MasteryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE mastery_records SET
			mastery_level = $3, study_count = $4, correct_count = $5, wrong_count = $6,
			accuracy_rate = $7, ease_factor = $8, review_interval_days = $9, repetition_count = $10,
			total_study_seconds = $11, last_study_seconds = $12, is_favorite = $13, is_difficult = $14,
			first_learned_at = $15, last_reviewed_at = $16, next_review_at = $17, updated_at = $18
		WHERE user_id = $1 AND item_id = $2`,
		rec.UserID, rec.ItemID, int(rec.MasteryLevel), rec.StudyCount, rec.CorrectCount, rec.WrongCount,
		rec.AccuracyRate, rec.EaseFactor, rec.ReviewIntervalDays, rec.RepetitionCount,
		rec.TotalStudySeconds, rec.LastStudySeconds, rec.IsFavorite, rec.IsDifficult,
		nullTime(rec.FirstLearnedAt), nullTime(rec.LastReviewedAt), rec.NextReviewAt, rec.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update mastery record",
			slog.String("user_id", rec.UserID.String()),
			slog.String("item_id", rec.ItemID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrMasteryRecordNotFound)
}

// ListDue implements store.MasteryRecordStore.ListDue
func (s *PostgresMasteryStore) ListDue(
	ctx context.Context,
	userID uuid.UUID,
	asOf time.Time,
	limit int,
) ([]domain.MasteryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+masteryColumns+`
		FROM mastery_records
		WHERE user_id = $1 AND next_review_at <= $2
		ORDER BY next_review_at ASC, mastery_level ASC, item_id ASC
		LIMIT $3`,
		userID, asOf, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.MasteryRecord
	for rows.Next() {
		rec, err := scanMasteryRecord(rows)
		if err != nil {
			return nil, MapError(err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return records, nil
}

// CountFirstLearnedSince implements store.MasteryRecordStore.CountFirstLearnedSince
func (s *PostgresMasteryStore) CountFirstLearnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mastery_records WHERE user_id = $1 AND first_learned_at >= $2`,
		userID, since).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// CountByLevel implements store.MasteryRecordStore.CountByLevel
func (s *PostgresMasteryStore) CountByLevel(ctx context.Context, userID uuid.UUID) (map[domain.MasteryLevel]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT mastery_level, COUNT(*) FROM mastery_records WHERE user_id = $1 GROUP BY mastery_level`,
		userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.MasteryLevel]int, len(domain.AllMasteryLevels()))
	for _, level := range domain.AllMasteryLevels() {
		counts[level] = 0
	}
	for rows.Next() {
		var level, n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, MapError(err)
		}
		counts[domain.MasteryLevel(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return counts, nil
}
