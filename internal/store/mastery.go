package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// MasteryRecordStore defines the interface for mastery record persistence.
// Records are keyed by (userID, itemID) and are never hard-deleted.
type MasteryRecordStore interface {
	// Create saves a new record.
	// Returns ErrMasteryRecordExists if the user already has a record for the item.
	Create(ctx context.Context, rec *domain.MasteryRecord) error

	// Get retrieves a record without locking it.
	// Returns ErrMasteryRecordNotFound if the record does not exist.
	Get(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error)

	// GetForUpdate retrieves a record and locks it until the unit of work ends.
	// Returns ErrMasteryRecordNotFound if the record does not exist.
	GetForUpdate(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error)

	// GetOrCreateForUpdate locks the record for (seed.UserID, seed.ItemID),
	// inserting seed first when no record exists. created reports whether the
	// returned record is the inserted seed. Two concurrent first exposures
	// therefore serialize on the same row instead of failing.
	GetOrCreateForUpdate(ctx context.Context, seed *domain.MasteryRecord) (rec *domain.MasteryRecord, created bool, err error)

	// Update overwrites an existing record after validating it.
	// Returns ErrMasteryRecordNotFound if the record does not exist.
	Update(ctx context.Context, rec *domain.MasteryRecord) error

	// ListDue returns up to limit records with NextReviewAt <= asOf, ordered by
	// NextReviewAt then mastery level.
	ListDue(ctx context.Context, userID uuid.UUID, asOf time.Time, limit int) ([]domain.MasteryRecord, error)

	// CountFirstLearnedSince counts records whose FirstLearnedAt is at or after since.
	CountFirstLearnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// CountByLevel returns the number of records per mastery level.
	CountByLevel(ctx context.Context, userID uuid.UUID) (map[domain.MasteryLevel]int, error)
}
