package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/lexis-api/internal/domain"
)

// Common errors
var (
	ErrNilRecord = errors.New("mastery record cannot be nil")
)

// Outcome is the engine's view of one review attempt.
type Outcome struct {
	Correct bool
	// Grade is the SM-2 response quality (0-5). Zero on a correct outcome
	// means Params.CorrectGrade. It is ignored for incorrect outcomes.
	Grade            int
	TimeSpentSeconds int
}

// Service defines the interface for interval engine operations
type Service interface {
	// ApplyOutcome computes the record that results from one review outcome.
	// The input record is not modified.
	ApplyOutcome(rec *domain.MasteryRecord, outcome Outcome, now time.Time) (*domain.MasteryRecord, error)

	// Reset moves a record back to the NEW state, keeping its history counters.
	Reset(rec *domain.MasteryRecord, now time.Time) (*domain.MasteryRecord, error)

	// Params returns the parameters the engine was built with.
	Params() *Params
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new engine with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new engine with custom parameters
func NewServiceWithParams(params *Params) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultService{
		params: params,
	}
}

func (s *defaultService) Params() *Params {
	return s.params
}

// ApplyOutcome implements the Service interface.
//
// An input record that already breaks an invariant is rejected with
// domain.ErrInvalidMasteryRecord. A result that breaks one is never returned;
// it yields domain.ErrInvariantViolation instead so that the caller aborts.
func (s *defaultService) ApplyOutcome(
	rec *domain.MasteryRecord,
	outcome Outcome,
	now time.Time,
) (*domain.MasteryRecord, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	grade, err := s.resolveGrade(outcome)
	if err != nil {
		return nil, err
	}
	if outcome.TimeSpentSeconds < 0 || outcome.TimeSpentSeconds > domain.MaxTimeSpentSeconds {
		return nil, domain.ErrInvalidTimeSpent
	}

	next := calculateNextRecord(rec, outcome, grade, now, s.params)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: after applying outcome: %w", domain.ErrInvariantViolation, err)
	}
	return next, nil
}

// Reset implements the Service interface.
func (s *defaultService) Reset(rec *domain.MasteryRecord, now time.Time) (*domain.MasteryRecord, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	next := calculateResetRecord(rec, now)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *defaultService) resolveGrade(outcome Outcome) (int, error) {
	if outcome.Grade < 0 || outcome.Grade > 5 {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, outcome.Grade)
	}
	if !outcome.Correct {
		return 0, nil
	}
	if outcome.Grade == 0 {
		return s.params.CorrectGrade, nil
	}
	if outcome.Grade < 3 {
		return 0, fmt.Errorf("%w: grade %d does not describe a correct answer", domain.ErrInvalidGrade, outcome.Grade)
	}
	return outcome.Grade, nil
}
