package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// AccountStore persists learner accounts (daily goal and point balance).
type AccountStore interface {
	// Get returns the user's account.
	// Returns ErrNotFound if the user has no account yet.
	Get(ctx context.Context, userID uuid.UUID) (*domain.LearnerAccount, error)

	// GetOrCreateForUpdate locks the user's account row, creating it with
	// defaultGoal if needed. Locking the account serializes all per-user
	// mutations that touch points or sessions.
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, defaultGoal int) (*domain.LearnerAccount, error)

	// Update overwrites the stored account.
	Update(ctx context.Context, a *domain.LearnerAccount) error
}
