package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/store"
)

const (
	challengeColumns = `id, title, description, session_type, status, start_time, end_time,
	max_participants, current_participants, reward_points, total_tasks, created_at, updated_at`

	participationColumns = `id, challenge_id, user_id, status, current_score, best_score,
	completed_tasks, progress_percentage, ranking, reward_points, joined_at, last_activity_at, completed_at`
)

// PostgresChallengeStore implements the store.ChallengeStore interface.
type PostgresChallengeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresChallengeStore creates a new PostgreSQL implementation of the ChallengeStore interface.
func NewPostgresChallengeStore(db store.DBTX, logger *slog.Logger) *PostgresChallengeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresChallengeStore{
		db:     db,
		logger: logger.With(slog.String("component", "challenge_store")),
	}
}

var _ store.ChallengeStore = (*PostgresChallengeStore)(nil)

func scanChallenge(row rowScanner) (*domain.Challenge, error) {
	var c domain.Challenge
	var sessionType, status string
	var endTime sql.NullTime
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &sessionType, &status, &c.StartTime, &endTime,
		&c.MaxParticipants, &c.CurrentParticipants, &c.RewardPoints, &c.TotalTasks,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.SessionType = domain.SessionType(sessionType)
	c.Status = domain.ChallengeStatus(status)
	c.EndTime = timePtr(endTime)
	return &c, nil
}

func scanParticipation(row rowScanner) (*domain.ChallengeParticipation, error) {
	var p domain.ChallengeParticipation
	var status string
	var lastActivity, completedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.ChallengeID, &p.UserID, &status, &p.CurrentScore, &p.BestScore,
		&p.CompletedTasks, &p.ProgressPercentage, &p.Ranking, &p.RewardPoints, &p.JoinedAt,
		&lastActivity, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.ParticipationStatus(status)
	p.LastActivityAt = timePtr(lastActivity)
	p.CompletedAt = timePtr(completedAt)
	return &p, nil
}

// Create implements store.ChallengeStore.Create
func (s *PostgresChallengeStore) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Title, c.Description, string(c.SessionType), string(c.Status), c.StartTime,
		nullTime(c.EndTime), c.MaxParticipants, c.CurrentParticipants, c.RewardPoints, c.TotalTasks,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return MapError(err)
	}
	return nil
}

func (s *PostgresChallengeStore) queryChallenge(ctx context.Context, query string, id uuid.UUID) (*domain.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrChallengeNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return c, nil
}

// Get implements store.ChallengeStore.Get
func (s *PostgresChallengeStore) Get(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	return s.queryChallenge(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
}

// GetForUpdate implements store.ChallengeStore.GetForUpdate
func (s *PostgresChallengeStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	return s.queryChallenge(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1 FOR UPDATE`, id)
}

// Update implements store.ChallengeStore.Update
func (s *PostgresChallengeStore) Update(ctx context.Context, c *domain.Challenge) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE challenges SET
			title = $2, description = $3, status = $4, end_time = $5, max_participants = $6,
			current_participants = $7, reward_points = $8, total_tasks = $9, updated_at = $10
		WHERE id = $1`,
		c.ID, c.Title, c.Description, string(c.Status), nullTime(c.EndTime), c.MaxParticipants,
		c.CurrentParticipants, c.RewardPoints, c.TotalTasks, c.UpdatedAt,
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrChallengeNotFound)
}

// CreateParticipation implements store.ChallengeStore.CreateParticipation
func (s *PostgresChallengeStore) CreateParticipation(ctx context.Context, p *domain.ChallengeParticipation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenge_participations (`+participationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.ChallengeID, p.UserID, string(p.Status), p.CurrentScore, p.BestScore,
		p.CompletedTasks, p.ProgressPercentage, p.Ranking, p.RewardPoints, p.JoinedAt,
		nullTime(p.LastActivityAt), nullTime(p.CompletedAt),
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to create participation",
			slog.String("challenge_id", p.ChallengeID.String()),
			slog.String("user_id", p.UserID.String()),
			slog.String("error", err.Error()))
		return MapUniqueViolation(err, store.ErrParticipationExists)
	}
	return nil
}

// GetParticipationForUpdate implements store.ChallengeStore.GetParticipationForUpdate
func (s *PostgresChallengeStore) GetParticipationForUpdate(
	ctx context.Context,
	challengeID, userID uuid.UUID,
) (*domain.ChallengeParticipation, error) {
	p, err := scanParticipation(s.db.QueryRowContext(ctx, `
		SELECT `+participationColumns+` FROM challenge_participations
		WHERE challenge_id = $1 AND user_id = $2
		FOR UPDATE`, challengeID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrParticipationNotFound
	}
	if err != nil {
		return nil, MapError(err)
	}
	return p, nil
}

// UpdateParticipation implements store.ChallengeStore.UpdateParticipation
func (s *PostgresChallengeStore) UpdateParticipation(ctx context.Context, p *domain.ChallengeParticipation) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE challenge_participations SET
			status = $3, current_score = $4, best_score = $5, completed_tasks = $6,
			progress_percentage = $7, ranking = $8, reward_points = $9,
			last_activity_at = $10, completed_at = $11
		WHERE challenge_id = $1 AND user_id = $2`,
		p.ChallengeID, p.UserID, string(p.Status), p.CurrentScore, p.BestScore, p.CompletedTasks,
		p.ProgressPercentage, p.Ranking, p.RewardPoints,
		nullTime(p.LastActivityAt), nullTime(p.CompletedAt),
	)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrParticipationNotFound)
}

// DeleteParticipation implements store.ChallengeStore.DeleteParticipation
func (s *PostgresChallengeStore) DeleteParticipation(ctx context.Context, challengeID, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM challenge_participations WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrParticipationNotFound)
}

func (s *PostgresChallengeStore) listParticipations(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.ChallengeParticipation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ChallengeParticipation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

// ListCompleted implements store.ChallengeStore.ListCompleted
func (s *PostgresChallengeStore) ListCompleted(ctx context.Context, challengeID uuid.UUID) ([]domain.ChallengeParticipation, error) {
	return s.listParticipations(ctx, `
		SELECT `+participationColumns+` FROM challenge_participations
		WHERE challenge_id = $1 AND status = 'COMPLETED'
		ORDER BY best_score DESC, completed_at ASC
		FOR UPDATE`, challengeID)
}

// Leaderboard implements store.ChallengeStore.Leaderboard
func (s *PostgresChallengeStore) Leaderboard(
	ctx context.Context,
	challengeID uuid.UUID,
	limit int,
) ([]domain.ChallengeParticipation, error) {
	return s.listParticipations(ctx, `
		SELECT `+participationColumns+` FROM challenge_participations
		WHERE challenge_id = $1 AND status <> 'ABANDONED'
		ORDER BY best_score DESC, joined_at ASC
		LIMIT $2`, challengeID, limit)
}
