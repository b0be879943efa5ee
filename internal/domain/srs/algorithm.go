package srs

import (
	"math"
	"time"

	"github.com/phrazzld/lexis-api/internal/domain"
)

// calculateNewEaseFactor applies the SM-2 ease factor update for a correct answer.
//
// Parameters:
//   - currentEF: The current ease factor of the record
//   - grade: SM-2 response quality in [3,5]
//   - params: Configuration parameters for the interval engine
//
// Returns:
//   - EF + (0.1 - (5-grade)*(0.08 + (5-grade)*0.02)), clamped to the configured bounds
//
// With grade 4 the adjustment is exactly zero, so a run of plain correct
// answers leaves the ease factor unchanged.
func calculateNewEaseFactor(currentEF float64, grade int, params *Params) float64 {
	q := float64(5 - grade)
	return clampEaseFactor(currentEF+(0.1-q*(0.08+q*0.02)), params)
}

// calculateLapseEaseFactor lowers the ease factor after an incorrect answer.
func calculateLapseEaseFactor(currentEF float64, params *Params) float64 {
	return clampEaseFactor(currentEF-params.LapsePenalty, params)
}

func clampEaseFactor(ef float64, params *Params) float64 {
	if ef < params.MinEaseFactor {
		ef = params.MinEaseFactor
	}
	if params.MaxEaseFactor > 0 && ef > params.MaxEaseFactor {
		ef = params.MaxEaseFactor
	}
	return ef
}

// calculateNewInterval determines the interval in days after a correct answer.
//
// Parameters:
//   - repetitions: Consecutive correct answers including this one
//   - previousInterval: The interval that was in effect before this answer
//   - easeFactor: The updated ease factor
//   - params: Configuration parameters for the interval engine
//
// Algorithm behavior:
//   - First correct answer in a run: params.FirstIntervalDays (1)
//   - Second: params.SecondIntervalDays (6)
//   - Later answers: round(previousInterval * easeFactor), capped at MaxIntervalDays
func calculateNewInterval(repetitions, previousInterval int, easeFactor float64, params *Params) int {
	var interval int
	switch {
	case repetitions <= 1:
		interval = params.FirstIntervalDays
	case repetitions == 2:
		interval = params.SecondIntervalDays
	default:
		interval = int(math.Round(float64(previousInterval) * easeFactor))
	}

	if interval < 1 {
		interval = 1
	}
	if params.MaxIntervalDays > 0 && interval > params.MaxIntervalDays {
		interval = params.MaxIntervalDays
	}
	return interval
}

// promoteLevel advances the level by at most one step when the next level's
// threshold is met.
func promoteLevel(level domain.MasteryLevel, repetitions, interval int, params *Params) domain.MasteryLevel {
	if level >= domain.MasteryExpert {
		return level
	}
	next := level.Next()
	threshold, ok := params.Thresholds[next]
	if !ok {
		return level
	}
	if repetitions >= threshold.MinRepetitions && interval >= threshold.MinIntervalDays {
		return next
	}
	return level
}

// calculateNextRecord returns a new MasteryRecord reflecting one review outcome.
//
// The input record is never modified. Counters, accuracy and timestamps are
// updated for every outcome; the scheduling fields follow SM-2:
//   - Correct: repetitions+1, interval from calculateNewInterval, ease factor
//     from the grade, level promoted by at most one step
//   - Incorrect: repetitions reset to 0, interval reset to 1, ease factor
//     lowered by LapsePenalty, level demoted by at most one step
//
// A late but correct answer is treated like an on-time one: repetitions
// continue from where they were.
func calculateNextRecord(
	rec *domain.MasteryRecord,
	outcome Outcome,
	grade int,
	now time.Time,
	params *Params,
) *domain.MasteryRecord {
	next := rec.Clone()

	next.StudyCount++
	if outcome.Correct {
		next.CorrectCount++
		next.RepetitionCount++
		next.EaseFactor = calculateNewEaseFactor(rec.EaseFactor, grade, params)
		next.ReviewIntervalDays = calculateNewInterval(
			next.RepetitionCount, rec.ReviewIntervalDays, next.EaseFactor, params)
		next.MasteryLevel = promoteLevel(
			rec.MasteryLevel, next.RepetitionCount, next.ReviewIntervalDays, params)
	} else {
		next.WrongCount++
		next.RepetitionCount = 0
		next.ReviewIntervalDays = 1
		next.EaseFactor = calculateLapseEaseFactor(rec.EaseFactor, params)
		next.MasteryLevel = rec.MasteryLevel.Prev()
	}
	next.AccuracyRate = domain.AccuracyRate(next.CorrectCount, next.StudyCount)

	next.TotalStudySeconds += outcome.TimeSpentSeconds
	next.LastStudySeconds = outcome.TimeSpentSeconds

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	if next.FirstLearnedAt == nil {
		first := now
		next.FirstLearnedAt = &first
	}
	next.NextReviewAt = now.AddDate(0, 0, next.ReviewIntervalDays)
	next.UpdatedAt = now

	return next
}

// calculateResetRecord returns the record moved back to the NEW state. The
// study history counters are preserved.
func calculateResetRecord(rec *domain.MasteryRecord, now time.Time) *domain.MasteryRecord {
	next := rec.Clone()
	next.MasteryLevel = domain.MasteryNew
	next.EaseFactor = domain.DefaultEaseFactor
	next.ReviewIntervalDays = domain.InitialIntervalDays
	next.RepetitionCount = 0
	next.NextReviewAt = now
	if next.LastReviewedAt != nil && next.LastReviewedAt.After(now) {
		next.NextReviewAt = *next.LastReviewedAt
	}
	next.UpdatedAt = now
	return next
}
