package srs

import (
	"errors"
	"testing"

	"github.com/phrazzld/lexis-api/internal/domain"
)

func TestNewDefaultParams(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	if err := params.Validate(); err != nil {
		t.Fatalf("default params should be valid: %v", err)
	}
	if params.MinEaseFactor != domain.MinEaseFactor {
		t.Errorf("expected min ease factor %.1f, got %f", domain.MinEaseFactor, params.MinEaseFactor)
	}
	if params.CorrectGrade != 4 {
		t.Errorf("expected correct grade 4, got %d", params.CorrectGrade)
	}
	for _, level := range domain.AllMasteryLevels()[1:] {
		if _, ok := params.Thresholds[level]; !ok {
			t.Errorf("missing threshold for %s", level)
		}
	}
}

func TestNewParams(t *testing.T) {
	t.Parallel()

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()
		penalty := 0.3
		params, err := NewParams(ParamsConfig{
			LapsePenalty:       &penalty,
			FirstIntervalDays:  2,
			SecondIntervalDays: 5,
			MaxIntervalDays:    180,
			Thresholds: map[domain.MasteryLevel]Threshold{
				domain.MasteryExpert: {MinRepetitions: 6, MinIntervalDays: 60},
			},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.LapsePenalty != 0.3 || params.MaxIntervalDays != 180 {
			t.Errorf("overrides not applied: %+v", params)
		}
		if params.FirstIntervalDays != 2 || params.SecondIntervalDays != 5 {
			t.Errorf("interval overrides not applied: %+v", params)
		}
		if params.Thresholds[domain.MasteryExpert].MinRepetitions != 6 {
			t.Errorf("threshold override not applied")
		}
		if params.Thresholds[domain.MasteryMastered].MinIntervalDays != 21 {
			t.Errorf("untouched threshold should keep its default")
		}
	})

	t.Run("zero lapse penalty is honored", func(t *testing.T) {
		t.Parallel()
		zero := 0.0
		params, err := NewParams(ParamsConfig{LapsePenalty: &zero})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.LapsePenalty != 0 {
			t.Errorf("expected no lapse penalty, got %.2f", params.LapsePenalty)
		}

		defaults, err := NewParams(ParamsConfig{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if defaults.LapsePenalty != 0.2 {
			t.Errorf("expected default lapse penalty, got %.2f", defaults.LapsePenalty)
		}
	})

	t.Run("rejects min ease factor below floor", func(t *testing.T) {
		t.Parallel()
		_, err := NewParams(ParamsConfig{MinEaseFactor: 1.1})
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
	})

	t.Run("rejects non-monotonic thresholds", func(t *testing.T) {
		t.Parallel()
		_, err := NewParams(ParamsConfig{
			Thresholds: map[domain.MasteryLevel]Threshold{
				domain.MasteryExpert: {MinRepetitions: 1, MinIntervalDays: 1},
			},
		})
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
	})

	t.Run("rejects failing correct grade", func(t *testing.T) {
		t.Parallel()
		_, err := NewParams(ParamsConfig{CorrectGrade: 2})
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("expected ErrInvalidParams, got %v", err)
		}
	})
}
