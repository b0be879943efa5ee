package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// CheckInStore persists check-in activities and the per-day records users
// create against them.
type CheckInStore interface {
	// CreateActivity saves a new activity.
	CreateActivity(ctx context.Context, a *domain.CheckInActivity) error

	// GetActivity retrieves an activity by ID.
	// Returns ErrActivityNotFound if it does not exist.
	GetActivity(ctx context.Context, id uuid.UUID) (*domain.CheckInActivity, error)

	// UpdateActivity overwrites an existing activity.
	// Returns ErrActivityNotFound if it does not exist.
	UpdateActivity(ctx context.Context, a *domain.CheckInActivity) error

	// FindRecord returns the non-cancelled record for the key.
	// Returns ErrCheckInRecordNotFound if there is none.
	FindRecord(ctx context.Context, userID, checkInID uuid.UUID, day time.Time) (*domain.CheckInRecord, error)

	// CreateRecord saves a new record.
	// Returns ErrCheckInRecordExists if a non-cancelled record exists for the key.
	CreateRecord(ctx context.Context, r *domain.CheckInRecord) error

	// ListRecords returns the user's records with from <= date <= to, oldest first.
	ListRecords(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.CheckInRecord, error)
}
