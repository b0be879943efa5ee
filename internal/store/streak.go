package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// StreakStore persists each user's streak state and the set of calendar days
// on which the user was active.
type StreakStore interface {
	// Get returns the user's streak, or a zero state if none is stored.
	Get(ctx context.Context, userID uuid.UUID) (*domain.StreakState, error)

	// GetOrCreateForUpdate locks the user's streak row, creating it if needed.
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID) (*domain.StreakState, error)

	// Update overwrites the stored streak state.
	Update(ctx context.Context, s *domain.StreakState) error

	// AddActivityDay records day in the activity set. inserted is false when
	// the day was already present.
	AddActivityDay(ctx context.Context, userID uuid.UUID, day time.Time) (inserted bool, err error)

	// ListActivityDays returns every recorded activity day in ascending order.
	ListActivityDays(ctx context.Context, userID uuid.UUID) ([]time.Time, error)
}
