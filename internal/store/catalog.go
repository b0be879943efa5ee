package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// Catalog is read-only access to vocabulary content.
type Catalog interface {
	// GetItem returns ErrItemNotFound for unknown IDs.
	GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error)

	// ListUnseen returns up to limit items the user has no mastery record for,
	// easiest first.
	ListUnseen(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Item, error)
}
