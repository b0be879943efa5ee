package srs

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

const epsilon = 1e-9

func TestCalculateNewInterval(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	testCases := []struct {
		name     string
		reps     int
		previous int
		ef       float64
		expected int
	}{
		{name: "first correct answer", reps: 1, previous: 1, ef: 2.5, expected: 1},
		{name: "second correct answer", reps: 2, previous: 1, ef: 2.5, expected: 6},
		{name: "third correct answer multiplies", reps: 3, previous: 6, ef: 2.5, expected: 15},
		{name: "rounds half up", reps: 4, previous: 15, ef: 2.5, expected: 38},
		{name: "low ease factor", reps: 3, previous: 6, ef: 1.3, expected: 8},
		{name: "capped at max interval", reps: 9, previous: 300, ef: 2.5, expected: 365},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := calculateNewInterval(tc.reps, tc.previous, tc.ef, params)
			if got != tc.expected {
				t.Errorf("expected interval %d, got %d", tc.expected, got)
			}
		})
	}
}

func TestCalculateNewEaseFactor(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	testCases := []struct {
		name     string
		current  float64
		grade    int
		expected float64
	}{
		{name: "grade 4 leaves ease unchanged", current: 2.5, grade: 4, expected: 2.5},
		{name: "grade 5 increases ease", current: 2.5, grade: 5, expected: 2.6},
		{name: "grade 3 decreases ease", current: 2.5, grade: 3, expected: 2.36},
		{name: "clamped at minimum", current: 1.35, grade: 3, expected: 1.3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := calculateNewEaseFactor(tc.current, tc.grade, params)
			if math.Abs(got-tc.expected) > epsilon {
				t.Errorf("expected ease factor %.4f, got %.4f", tc.expected, got)
			}
		})
	}
}

func TestCalculateLapseEaseFactor(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	if got := calculateLapseEaseFactor(2.5, params); math.Abs(got-2.3) > epsilon {
		t.Errorf("expected 2.3, got %.4f", got)
	}
	if got := calculateLapseEaseFactor(1.4, params); math.Abs(got-1.3) > epsilon {
		t.Errorf("expected clamp to 1.3, got %.4f", got)
	}
}

func TestPromoteLevel(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	testCases := []struct {
		name     string
		level    domain.MasteryLevel
		reps     int
		interval int
		expected domain.MasteryLevel
	}{
		{name: "new to learning", level: domain.MasteryNew, reps: 1, interval: 1, expected: domain.MasteryLearning},
		{name: "learning to familiar", level: domain.MasteryLearning, reps: 2, interval: 6, expected: domain.MasteryFamiliar},
		{name: "familiar needs three weeks", level: domain.MasteryFamiliar, reps: 3, interval: 15, expected: domain.MasteryFamiliar},
		{name: "familiar to mastered", level: domain.MasteryFamiliar, reps: 4, interval: 38, expected: domain.MasteryMastered},
		{name: "mastered to expert", level: domain.MasteryMastered, reps: 5, interval: 95, expected: domain.MasteryExpert},
		{name: "at most one step", level: domain.MasteryNew, reps: 6, interval: 200, expected: domain.MasteryLearning},
		{name: "expert saturates", level: domain.MasteryExpert, reps: 9, interval: 365, expected: domain.MasteryExpert},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := promoteLevel(tc.level, tc.reps, tc.interval, params)
			if got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestCalculateNextRecord(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	base, err := domain.NewMasteryRecord(uuid.New(), uuid.New(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to create record: %v", err)
	}

	t.Run("correct answer", func(t *testing.T) {
		t.Parallel()
		next := calculateNextRecord(base, Outcome{Correct: true, TimeSpentSeconds: 12}, 4, now, params)

		if next.StudyCount != 1 || next.CorrectCount != 1 || next.WrongCount != 0 {
			t.Errorf("unexpected counters: %+v", next)
		}
		if next.RepetitionCount != 1 || next.ReviewIntervalDays != 1 {
			t.Errorf("expected rep 1 interval 1, got rep %d interval %d", next.RepetitionCount, next.ReviewIntervalDays)
		}
		if next.AccuracyRate != 1 {
			t.Errorf("expected accuracy 1, got %f", next.AccuracyRate)
		}
		if !next.NextReviewAt.Equal(now.AddDate(0, 0, 1)) {
			t.Errorf("unexpected next review %v", next.NextReviewAt)
		}
		if next.FirstLearnedAt == nil || !next.FirstLearnedAt.Equal(now) {
			t.Errorf("first learned should be set to now")
		}
		if next.TotalStudySeconds != 12 || next.LastStudySeconds != 12 {
			t.Errorf("study time not folded in: %+v", next)
		}
		if next.MasteryLevel != domain.MasteryLearning {
			t.Errorf("expected LEARNING, got %s", next.MasteryLevel)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		t.Parallel()
		_ = calculateNextRecord(base, Outcome{Correct: true}, 4, now, params)
		if base.StudyCount != 0 || base.LastReviewedAt != nil {
			t.Errorf("input record was mutated: %+v", base)
		}
	})

	t.Run("incorrect answer resets schedule", func(t *testing.T) {
		t.Parallel()
		earlier := now.AddDate(0, 0, -10)
		advanced := base.Clone()
		advanced.MasteryLevel = domain.MasteryMastered
		advanced.RepetitionCount = 4
		advanced.ReviewIntervalDays = 38
		advanced.EaseFactor = 2.5
		advanced.StudyCount, advanced.CorrectCount = 4, 4
		advanced.AccuracyRate = 1
		advanced.FirstLearnedAt = &earlier
		advanced.LastReviewedAt = &earlier
		advanced.NextReviewAt = earlier.AddDate(0, 0, 38)

		next := calculateNextRecord(advanced, Outcome{Correct: false}, 0, now, params)

		if next.RepetitionCount != 0 || next.ReviewIntervalDays != 1 {
			t.Errorf("expected reset, got rep %d interval %d", next.RepetitionCount, next.ReviewIntervalDays)
		}
		if math.Abs(next.EaseFactor-2.3) > epsilon {
			t.Errorf("expected ease 2.3, got %f", next.EaseFactor)
		}
		if next.MasteryLevel != domain.MasteryFamiliar {
			t.Errorf("expected one step down to FAMILIAR, got %s", next.MasteryLevel)
		}
		if !next.FirstLearnedAt.Equal(earlier) {
			t.Errorf("first learned must not change")
		}
		if math.Abs(next.AccuracyRate-0.8) > epsilon {
			t.Errorf("expected accuracy 0.8, got %f", next.AccuracyRate)
		}
	})
}
