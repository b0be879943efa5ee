package srs

import (
	"errors"
	"fmt"

	"github.com/phrazzld/lexis-api/internal/domain"
)

// Threshold is the minimum state a record must reach after a correct answer
// to be promoted into a mastery level.
type Threshold struct {
	MinRepetitions  int
	MinIntervalDays int
}

// Params defines all configurable parameters for the interval engine
type Params struct {
	// Ease factor limits. MaxEaseFactor of 0 means unbounded.
	MinEaseFactor float64
	MaxEaseFactor float64

	// CorrectGrade is the SM-2 grade assumed for a correct answer that carries
	// no explicit grade.
	CorrectGrade int

	// LapsePenalty is subtracted from the ease factor on an incorrect answer.
	LapsePenalty float64

	// Fixed intervals for the first and second consecutive correct answer.
	FirstIntervalDays  int
	SecondIntervalDays int

	// MaxIntervalDays caps interval growth. 0 means no cap.
	MaxIntervalDays int

	// Thresholds maps each level above NEW to its promotion requirement.
	Thresholds map[domain.MasteryLevel]Threshold
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance
type ParamsConfig struct {
	MinEaseFactor float64
	MaxEaseFactor float64
	CorrectGrade  int
	// LapsePenalty is a pointer so that an explicit 0 (no penalty) differs
	// from "use the default".
	LapsePenalty       *float64
	FirstIntervalDays  int
	SecondIntervalDays int
	MaxIntervalDays    int
	Thresholds         map[domain.MasteryLevel]Threshold
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor: domain.MinEaseFactor,
		MaxEaseFactor: 0,

		CorrectGrade: 4,
		LapsePenalty: 0.2,

		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
		MaxIntervalDays:    365,

		Thresholds: DefaultThresholds(),
	}
}

// DefaultThresholds returns the default promotion table. With the default
// ease factor the interval sequence is 1, 6, 15, 38, 95 days, so MASTERED is
// reached once an item survives a three-week interval and EXPERT after one
// further cycle beyond that.
func DefaultThresholds() map[domain.MasteryLevel]Threshold {
	return map[domain.MasteryLevel]Threshold{
		domain.MasteryLearning: {MinRepetitions: 1, MinIntervalDays: 1},
		domain.MasteryFamiliar: {MinRepetitions: 2, MinIntervalDays: 1},
		domain.MasteryMastered: {MinRepetitions: 3, MinIntervalDays: 21},
		domain.MasteryExpert:   {MinRepetitions: 5, MinIntervalDays: 42},
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) (*Params, error) {
	params := NewDefaultParams()

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
	}
	if config.CorrectGrade > 0 {
		params.CorrectGrade = config.CorrectGrade
	}
	if config.LapsePenalty != nil {
		params.LapsePenalty = *config.LapsePenalty
	}
	if config.FirstIntervalDays > 0 {
		params.FirstIntervalDays = config.FirstIntervalDays
	}
	if config.SecondIntervalDays > 0 {
		params.SecondIntervalDays = config.SecondIntervalDays
	}
	if config.MaxIntervalDays > 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}
	for level, threshold := range config.Thresholds {
		params.Thresholds[level] = threshold
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// ErrInvalidParams is returned when engine parameters are inconsistent.
var ErrInvalidParams = errors.New("invalid interval engine parameters")

// Validate checks that the parameters can never produce an out-of-domain record.
func (p *Params) Validate() error {
	if p.MinEaseFactor < domain.MinEaseFactor {
		return fmt.Errorf("%w: min ease factor %.2f below %.1f", ErrInvalidParams, p.MinEaseFactor, domain.MinEaseFactor)
	}
	if p.MaxEaseFactor != 0 && p.MaxEaseFactor < p.MinEaseFactor {
		return fmt.Errorf("%w: max ease factor below min", ErrInvalidParams)
	}
	if p.CorrectGrade < 3 || p.CorrectGrade > 5 {
		return fmt.Errorf("%w: correct grade %d not in [3,5]", ErrInvalidParams, p.CorrectGrade)
	}
	if p.LapsePenalty < 0 {
		return fmt.Errorf("%w: negative lapse penalty", ErrInvalidParams)
	}
	if p.FirstIntervalDays < 1 || p.SecondIntervalDays < p.FirstIntervalDays {
		return fmt.Errorf("%w: initial intervals %d, %d", ErrInvalidParams, p.FirstIntervalDays, p.SecondIntervalDays)
	}
	if p.MaxIntervalDays != 0 && p.MaxIntervalDays < p.SecondIntervalDays {
		return fmt.Errorf("%w: max interval below second interval", ErrInvalidParams)
	}

	prev := Threshold{}
	for _, level := range domain.AllMasteryLevels()[1:] {
		t, ok := p.Thresholds[level]
		if !ok {
			return fmt.Errorf("%w: missing threshold for %s", ErrInvalidParams, level)
		}
		if t.MinRepetitions < prev.MinRepetitions || t.MinIntervalDays < prev.MinIntervalDays {
			return fmt.Errorf("%w: threshold for %s is weaker than the level below", ErrInvalidParams, level)
		}
		prev = t
	}
	return nil
}
