// Package streak implements consecutive-day activity accounting and the
// streak-based reward rules.
package streak

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/phrazzld/lexis-api/internal/domain"
)

// Outcome describes the effect of recording one day of activity.
type Outcome struct {
	State domain.StreakState
	// Changed is false for the idempotent same-day branch.
	Changed bool
	// Backdated is true when the day preceded the last activity date and the
	// streak was recomputed from the activity history.
	Backdated bool
	// Broken is true when a forward activity reset a streak longer than one day.
	Broken         bool
	PreviousStreak int
}

// IsBackdated reports whether recording day requires the activity history.
func IsBackdated(prev domain.StreakState, day time.Time) bool {
	return prev.LastActivityDate != nil && day.Before(*prev.LastActivityDate)
}

// Record applies one day of activity to prev. day must be a calendar day (see
// domain.CalendarDay). history is the set of days already recorded for the
// user; it is only consulted for backdated days and may be nil otherwise.
//
// Rules:
//   - same day as the last activity: no-op
//   - the following day: streak + 1
//   - any later day: streak resets to 1
//   - an earlier day: the streak ending at the last activity date is
//     recomputed from history plus day, so a makeup that fills a gap bridges
//     the two runs but never exceeds what a forward replay would produce
//
// MaxStreak never decreases.
func Record(prev domain.StreakState, day time.Time, history []time.Time, now time.Time) Outcome {
	out := Outcome{State: prev, PreviousStreak: prev.CurrentStreak}

	if prev.LastActivityDate == nil {
		d := day
		out.State.LastActivityDate = &d
		out.State.CurrentStreak = 1
		out.Changed = true
	} else {
		last := *prev.LastActivityDate
		switch gap := domain.DaysBetween(last, day); {
		case gap == 0:
			return out
		case gap == 1:
			d := day
			out.State.LastActivityDate = &d
			out.State.CurrentStreak = prev.CurrentStreak + 1
			out.Changed = true
		case gap > 1:
			d := day
			out.State.LastActivityDate = &d
			out.State.CurrentStreak = 1
			out.Broken = prev.CurrentStreak > 1
			out.Changed = true
		default:
			if containsDay(history, day) {
				return out
			}
			days := append(append(make([]time.Time, 0, len(history)+2), history...), day, last)
			out.State.CurrentStreak = RunEndingAt(days, last)
			out.Backdated = true
			out.Changed = true
		}
	}

	if out.State.CurrentStreak > out.State.MaxStreak {
		out.State.MaxStreak = out.State.CurrentStreak
	}
	out.State.UpdatedAt = now
	return out
}

// Current returns the streak still alive on today: the stored streak when the
// last activity was today or yesterday, else 0. Stored state only changes on
// activity, so a lapsed streak stays in storage until the next recording.
func Current(state domain.StreakState, today time.Time) int {
	if state.LastActivityDate == nil {
		return 0
	}
	if gap := domain.DaysBetween(*state.LastActivityDate, today); gap > 1 {
		return 0
	}
	return state.CurrentStreak
}

// RunEndingAt returns the length of the run of consecutive days in days that
// ends at anchor. It is 0 when anchor itself is absent.
func RunEndingAt(days []time.Time, anchor time.Time) int {
	set := make(map[time.Time]struct{}, len(days))
	for _, d := range days {
		set[d.UTC()] = struct{}{}
	}

	run := 0
	for cursor := anchor.UTC(); ; cursor = cursor.AddDate(0, 0, -1) {
		if _, ok := set[cursor]; !ok {
			return run
		}
		run++
	}
}

// Replay computes the streak state that forward recording of days would
// produce. It is used to verify and rebuild stored state.
func Replay(days []time.Time, now time.Time) domain.StreakState {
	sorted := append([]time.Time(nil), days...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	state := domain.StreakState{}
	for _, d := range sorted {
		state = Record(state, d, nil, now).State
	}
	return state
}

func containsDay(days []time.Time, day time.Time) bool {
	for _, d := range days {
		if d.Equal(day) {
			return true
		}
	}
	return false
}

// Tier is one step of the streak multiplier function.
type Tier struct {
	MinDays    int
	Multiplier float64
}

// ErrInvalidTiers is returned for a multiplier table that is not a
// non-decreasing step function.
var ErrInvalidTiers = errors.New("invalid streak multiplier tiers")

// Multipliers is a non-decreasing step function of streak length.
type Multipliers struct {
	tiers []Tier
}

// DefaultTiers returns 1.0 below a week, 1.2 up to 29 days and 1.5 from 30.
func DefaultTiers() []Tier {
	return []Tier{
		{MinDays: 0, Multiplier: 1.0},
		{MinDays: 7, Multiplier: 1.2},
		{MinDays: 30, Multiplier: 1.5},
	}
}

// NewMultipliers validates and sorts tiers.
func NewMultipliers(tiers []Tier) (*Multipliers, error) {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinDays < sorted[j].MinDays })

	for i, t := range sorted {
		if t.Multiplier <= 0 {
			return nil, fmt.Errorf("%w: multiplier %.2f for %d days", ErrInvalidTiers, t.Multiplier, t.MinDays)
		}
		if i > 0 {
			prev := sorted[i-1]
			if t.MinDays == prev.MinDays {
				return nil, fmt.Errorf("%w: duplicate tier for %d days", ErrInvalidTiers, t.MinDays)
			}
			if t.Multiplier < prev.Multiplier {
				return nil, fmt.Errorf("%w: multiplier decreases at %d days", ErrInvalidTiers, t.MinDays)
			}
		}
	}
	return &Multipliers{tiers: sorted}, nil
}

// For returns the multiplier for a streak of the given length.
func (m *Multipliers) For(streakDays int) float64 {
	multiplier := 1.0
	for _, t := range m.tiers {
		if streakDays < t.MinDays {
			break
		}
		multiplier = t.Multiplier
	}
	return multiplier
}

// Reward returns round(basePoints * multiplier(streakDays)).
func (m *Multipliers) Reward(basePoints, streakDays int) int {
	if basePoints <= 0 {
		return 0
	}
	return int(math.Round(float64(basePoints) * m.For(streakDays)))
}

// MakeupCost is the price of a makeup check-in reaching daysBack days into
// the past: costPerDay for each day, with a minimum of one day.
func MakeupCost(costPerDay, daysBack int) int {
	return costPerDay * max(1, daysBack)
}
