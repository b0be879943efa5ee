// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every business error returned by the scheduler wraps exactly one
// of these so callers can classify it with errors.Is.
var (
	// ErrValidation is returned when input is malformed. Nothing is mutated.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict is returned when the request contradicts current state,
	// such as a second active session or a makeup outside its window.
	ErrStateConflict = errors.New("state conflict")

	// ErrInsufficientResource is returned when the user lacks a resource the
	// operation consumes. No partial deduction takes place.
	ErrInsufficientResource = errors.New("insufficient resource")

	// ErrTransient is returned for lock timeouts and connectivity failures.
	// The mutation is atomic so the caller may safely retry.
	ErrTransient = errors.New("transient store failure")

	// ErrInvariantViolation marks a broken internal invariant. It is logged and
	// the operation is aborted; the record is never coerced into range.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Validation errors.
var (
	ErrEmptyUserID         = fmt.Errorf("%w: user ID cannot be empty", ErrValidation)
	ErrEmptyItemID         = fmt.Errorf("%w: item ID cannot be empty", ErrValidation)
	ErrInvalidStudyType    = fmt.Errorf("%w: unknown study type", ErrValidation)
	ErrInvalidSessionType  = fmt.Errorf("%w: unknown session type", ErrValidation)
	ErrInvalidTimeSpent    = fmt.Errorf("%w: time spent must be between 0 and %d seconds", ErrValidation, MaxTimeSpentSeconds)
	ErrInvalidMasteryLevel = fmt.Errorf("%w: unknown mastery level", ErrValidation)
	ErrInvalidLimit        = fmt.Errorf("%w: limit must be positive", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidGrade        = fmt.Errorf("%w: grade out of range", ErrValidation)
)

// State conflict errors.
var (
	ErrSessionAlreadyActive = fmt.Errorf("%w: an active session already exists", ErrStateConflict)
	ErrInvalidState         = fmt.Errorf("%w: invalid state for this transition", ErrStateConflict)
	ErrMakeupNotAllowed     = fmt.Errorf("%w: makeup check-in not allowed", ErrStateConflict)
	ErrAlreadyCheckedIn     = fmt.Errorf("%w: already checked in for this date", ErrStateConflict)
	ErrActivityNotActive    = fmt.Errorf("%w: check-in activity is not active", ErrStateConflict)
	ErrOutsideActivityDates = fmt.Errorf("%w: date outside check-in activity period", ErrStateConflict)
	ErrCheckInRulesNotMet   = fmt.Errorf("%w: check-in rules not met", ErrStateConflict)
	ErrChallengeNotOpen     = fmt.Errorf("%w: challenge is not open", ErrStateConflict)
	ErrChallengeFull        = fmt.Errorf("%w: challenge is full", ErrStateConflict)
	ErrAlreadyJoined        = fmt.Errorf("%w: already joined this challenge", ErrStateConflict)
)

// ErrInsufficientPoints is returned when a makeup costs more than the balance.
var ErrInsufficientPoints = fmt.Errorf("%w: insufficient points", ErrInsufficientResource)

// ErrInvalidMasteryRecord is returned when a mastery record breaks one of its
// invariants, either on input to the interval engine or on its output.
var ErrInvalidMasteryRecord = fmt.Errorf("%w: invalid mastery record", ErrInvariantViolation)
