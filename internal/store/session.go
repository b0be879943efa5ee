package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// SessionStore defines the interface for session summary persistence.
type SessionStore interface {
	// Create saves a new session.
	// Returns ErrActiveSessionExists if the user already has an open
	// (ACTIVE or PAUSED) session.
	Create(ctx context.Context, s *domain.SessionSummary) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.SessionSummary, error)

	// GetForUpdate retrieves and locks a session by ID.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.SessionSummary, error)

	// GetOpenForUpdate retrieves and locks the user's ACTIVE or PAUSED session.
	// Returns ErrSessionNotFound if the user has none.
	GetOpenForUpdate(ctx context.Context, userID uuid.UUID) (*domain.SessionSummary, error)

	// Update overwrites an existing session.
	Update(ctx context.Context, s *domain.SessionSummary) error

	// ListCompleted returns the user's COMPLETED sessions whose end time
	// falls in [from, to), oldest first.
	ListCompleted(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.SessionSummary, error)

	// ListIdle returns IDs of ACTIVE sessions whose last activity is before
	// activeCutoff and PAUSED sessions whose last activity is before
	// pausedCutoff, oldest first.
	ListIdle(ctx context.Context, activeCutoff, pausedCutoff time.Time, limit int) ([]uuid.UUID, error)
}
