package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/store"
)

const sessionColumns = `id, user_id, session_type, status, start_time, end_time, paused_at,
	last_activity_at, words_studied, words_mastered, questions_answered, questions_correct,
	points_earned, accuracy_rate, duration_seconds, created_at, updated_at`

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the SessionStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

var _ store.SessionStore = (*PostgresSessionStore)(nil)

func scanSession(row rowScanner) (*domain.SessionSummary, error) {
	var s domain.SessionSummary
	var sessionType, status string
	var endTime, pausedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.UserID, &sessionType, &status, &s.StartTime, &endTime, &pausedAt,
		&s.LastActivityAt, &s.WordsStudied, &s.WordsMastered, &s.QuestionsAnswered, &s.QuestionsCorrect,
		&s.PointsEarned, &s.AccuracyRate, &s.DurationSeconds, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.SessionType = domain.SessionType(sessionType)
	s.Status = domain.SessionStatus(status)
	s.EndTime = timePtr(endTime)
	s.PausedAt = timePtr(pausedAt)
	return &s, nil
}

// Create implements store.SessionStore.Create
func (s *PostgresSessionStore) Create(ctx context.Context, sess *domain.SessionSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		sess.ID, sess.UserID, string(sess.SessionType), string(sess.Status), sess.StartTime,
		nullTime(sess.EndTime), nullTime(sess.PausedAt), sess.LastActivityAt,
		sess.WordsStudied, sess.WordsMastered, sess.QuestionsAnswered, sess.QuestionsCorrect,
		sess.PointsEarned, sess.AccuracyRate, sess.DurationSeconds, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to create session",
			slog.String("user_id", sess.UserID.String()),
			slog.String("error", err.Error()))
		return MapUniqueViolation(err, store.ErrActiveSessionExists)
	}
	return nil
}

func (s *PostgresSessionStore) queryOne(ctx context.Context, query string, args ...any) (*domain.SessionSummary, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return sess, nil
}

// Get implements store.SessionStore.Get
func (s *PostgresSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.SessionSummary, error) {
	return s.queryOne(ctx, `SELECT `+sessionColumns+` FROM learning_sessions WHERE id = $1`, id)
}

// GetForUpdate implements store.SessionStore.GetForUpdate
func (s *PostgresSessionStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.SessionSummary, error) {
	return s.queryOne(ctx, `SELECT `+sessionColumns+` FROM learning_sessions WHERE id = $1 FOR UPDATE`, id)
}

// GetOpenForUpdate implements store.SessionStore.GetOpenForUpdate
func (s *PostgresSessionStore) GetOpenForUpdate(ctx context.Context, userID uuid.UUID) (*domain.SessionSummary, error) {
	return s.queryOne(ctx, `
		SELECT `+sessionColumns+` FROM learning_sessions
		WHERE user_id = $1 AND status IN ('ACTIVE', 'PAUSED')
		FOR UPDATE`, userID)
}

// Update implements store.SessionStore.Update
func (s *PostgresSessionStore) Update(ctx context.Context, sess *domain.SessionSummary) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE learning_sessions SET
			status = $2, end_time = $3, paused_at = $4, last_activity_at = $5,
			words_studied = $6, words_mastered = $7, questions_answered = $8, questions_correct = $9,
			points_earned = $10, accuracy_rate = $11, duration_seconds = $12, updated_at = $13
		WHERE id = $1`,
		sess.ID, string(sess.Status), nullTime(sess.EndTime), nullTime(sess.PausedAt), sess.LastActivityAt,
		sess.WordsStudied, sess.WordsMastered, sess.QuestionsAnswered, sess.QuestionsCorrect,
		sess.PointsEarned, sess.AccuracyRate, sess.DurationSeconds, sess.UpdatedAt,
	)
	if err != nil {
		return MapUniqueViolation(err, store.ErrActiveSessionExists)
	}
	return CheckRowsAffected(result, store.ErrSessionNotFound)
}

// ListCompleted implements store.SessionStore.ListCompleted
func (s *PostgresSessionStore) ListCompleted(
	ctx context.Context,
	userID uuid.UUID,
	from, to time.Time,
) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM learning_sessions
		WHERE user_id = $1 AND status = 'COMPLETED' AND end_time >= $2 AND end_time < $3
		ORDER BY end_time ASC`, userID, from, to)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []domain.SessionSummary
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, MapError(err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return sessions, nil
}

// ListIdle implements store.SessionStore.ListIdle
func (s *PostgresSessionStore) ListIdle(ctx context.Context, activeCutoff, pausedCutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM learning_sessions
		WHERE (status = 'ACTIVE' AND last_activity_at < $1)
		   OR (status = 'PAUSED' AND last_activity_at < $2)
		ORDER BY last_activity_at ASC
		LIMIT $3`, activeCutoff, pausedCutoff, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return ids, nil
}
