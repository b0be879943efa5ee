package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// ChallengeStore persists challenges and their participations.
type ChallengeStore interface {
	// Create saves a new challenge.
	Create(ctx context.Context, c *domain.Challenge) error

	// Get retrieves a challenge by ID.
	// Returns ErrChallengeNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Challenge, error)

	// GetForUpdate retrieves and locks a challenge by ID. Joins and leaves
	// lock the challenge so that the participant count stays exact.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Challenge, error)

	// Update overwrites an existing challenge.
	Update(ctx context.Context, c *domain.Challenge) error

	// CreateParticipation saves a new participation.
	// Returns ErrParticipationExists if the user already joined.
	CreateParticipation(ctx context.Context, p *domain.ChallengeParticipation) error

	// GetParticipationForUpdate retrieves and locks the user's participation.
	// Returns ErrParticipationNotFound if the user has not joined.
	GetParticipationForUpdate(ctx context.Context, challengeID, userID uuid.UUID) (*domain.ChallengeParticipation, error)

	// UpdateParticipation overwrites an existing participation.
	UpdateParticipation(ctx context.Context, p *domain.ChallengeParticipation) error

	// DeleteParticipation removes the user's participation.
	// Returns ErrParticipationNotFound if the user has not joined.
	DeleteParticipation(ctx context.Context, challengeID, userID uuid.UUID) error

	// ListCompleted returns the completed participations of a challenge in
	// finishing order: best score descending, then earliest completion.
	ListCompleted(ctx context.Context, challengeID uuid.UUID) ([]domain.ChallengeParticipation, error)

	// Leaderboard returns up to limit participations that have not been
	// abandoned, ordered by best score descending, then earliest join.
	Leaderboard(ctx context.Context, challengeID uuid.UUID, limit int) ([]domain.ChallengeParticipation, error)
}
