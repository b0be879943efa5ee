package store

import (
	"errors"
	"fmt"

	"github.com/phrazzld/lexis-api/internal/domain"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrMasteryRecordNotFound, ErrSessionNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second record for the same user and item).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	// It is transient: retrying the whole transaction is safe.
	ErrLockTimeout = fmt.Errorf("%w: lock timeout", domain.ErrTransient)

	// ErrSerialization is returned for serialization failures and deadlocks.
	ErrSerialization = fmt.Errorf("%w: serialization failure", domain.ErrTransient)

	// ErrUnavailable is returned when the store cannot be reached.
	ErrUnavailable = fmt.Errorf("%w: store unavailable", domain.ErrTransient)

	// Entity-specific "not found" errors

	// ErrMasteryRecordNotFound indicates that no record exists for the user and item.
	ErrMasteryRecordNotFound = fmt.Errorf("%w: mastery record", ErrNotFound)

	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)

	// ErrActivityNotFound indicates that the requested check-in activity does not exist.
	ErrActivityNotFound = fmt.Errorf("%w: check-in activity", ErrNotFound)

	// ErrCheckInRecordNotFound indicates that no check-in record exists for the key.
	ErrCheckInRecordNotFound = fmt.Errorf("%w: check-in record", ErrNotFound)

	// ErrItemNotFound indicates that the catalog has no such item.
	ErrItemNotFound = fmt.Errorf("%w: item", ErrNotFound)

	// ErrChallengeNotFound indicates that the requested challenge does not exist.
	ErrChallengeNotFound = fmt.Errorf("%w: challenge", ErrNotFound)

	// ErrParticipationNotFound indicates that the user has not joined the challenge.
	ErrParticipationNotFound = fmt.Errorf("%w: challenge participation", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrMasteryRecordExists indicates that the user already has a record for the item.
	ErrMasteryRecordExists = fmt.Errorf("%w: mastery record", ErrDuplicate)

	// ErrCheckInRecordExists indicates a non-cancelled check-in for the same date.
	ErrCheckInRecordExists = fmt.Errorf("%w: check-in record", ErrDuplicate)

	// ErrParticipationExists indicates the user already joined the challenge.
	ErrParticipationExists = fmt.Errorf("%w: challenge participation", ErrDuplicate)

	// ErrActiveSessionExists indicates the user already has an ACTIVE session.
	ErrActiveSessionExists = fmt.Errorf("%w: active session", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsTransientError reports whether retrying the transaction may succeed.
func IsTransientError(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}
