package reward

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/domain/streak"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/service"
	"github.com/phrazzld/lexis-api/internal/store"
)

// Accountant applies streak and reward rules inside a caller's unit of work.
// It is shared by the reward service (check-ins) and the session service
// (session completion).
type Accountant struct {
	multipliers *streak.Multipliers
	loc         *time.Location
	dailyGoal   int
}

// NewAccountant creates an Accountant. Calendar days are computed in loc.
func NewAccountant(multipliers *streak.Multipliers, loc *time.Location, defaultDailyGoal int) *Accountant {
	if multipliers == nil {
		multipliers, _ = streak.NewMultipliers(nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Accountant{multipliers: multipliers, loc: loc, dailyGoal: defaultDailyGoal}
}

// Day returns the calendar day of t in the accountant's timezone.
func (a *Accountant) Day(t time.Time) time.Time {
	return domain.CalendarDay(t, a.loc)
}

// Span returns the instants [from, to) that make up calendar day in the
// accountant's timezone.
func (a *Accountant) Span(day time.Time) (from, to time.Time) {
	y, m, d := day.Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, a.loc)
	return from, from.AddDate(0, 0, 1)
}

// Location returns the timezone used for calendar days.
func (a *Accountant) Location() *time.Location {
	return a.loc
}

// DefaultDailyGoal is the goal given to accounts created on first use.
func (a *Accountant) DefaultDailyGoal() int {
	return a.dailyGoal
}

// Multipliers returns the streak multiplier table.
func (a *Accountant) Multipliers() *streak.Multipliers {
	return a.multipliers
}

// RecordActivity marks day as active for userID and updates the streak.
// The streak row stays locked until the unit of work ends, so concurrent
// recordings for the same user serialize and the second one of a day is a
// no-op. A STREAK_BROKEN event is queued on box when a forward day resets a
// streak longer than one day.
func (a *Accountant) RecordActivity(
	ctx context.Context,
	s store.Stores,
	box *service.Outbox,
	userID uuid.UUID,
	day time.Time,
	now time.Time,
) (streak.Outcome, error) {
	prev, err := s.Streaks.GetOrCreateForUpdate(ctx, userID)
	if err != nil {
		return streak.Outcome{}, fmt.Errorf("failed to lock streak: %w", err)
	}

	var history []time.Time
	if streak.IsBackdated(*prev, day) {
		history, err = s.Streaks.ListActivityDays(ctx, userID)
		if err != nil {
			return streak.Outcome{}, fmt.Errorf("failed to load activity days: %w", err)
		}
	}
	if _, err := s.Streaks.AddActivityDay(ctx, userID, day); err != nil {
		return streak.Outcome{}, fmt.Errorf("failed to record activity day: %w", err)
	}

	out := streak.Record(*prev, day, history, now)
	if !out.Changed {
		return out, nil
	}
	if err := s.Streaks.Update(ctx, &out.State); err != nil {
		return streak.Outcome{}, fmt.Errorf("failed to update streak: %w", err)
	}

	if out.Broken && box != nil {
		payload := events.StreakBrokenPayload{PreviousStreak: out.PreviousStreak, Day: day}
		if err := box.Add(events.TypeStreakBroken, userID, payload, now); err != nil {
			return streak.Outcome{}, err
		}
	}
	return out, nil
}

// Grant is the result of crediting a streak-multiplied reward.
type Grant struct {
	BasePoints int     `json:"base_points"`
	Multiplier float64 `json:"multiplier"`
	Points     int     `json:"points"`
}

// Credit multiplies basePoints by the multiplier for streakDays and credits
// the result to account, which must be locked by the caller and is updated
// in place and in the store. A REWARD_GRANTED event is queued for non-zero
// rewards.
func (a *Accountant) Credit(
	ctx context.Context,
	s store.Stores,
	box *service.Outbox,
	account *domain.LearnerAccount,
	basePoints, streakDays int,
	source string,
	sourceID uuid.UUID,
	now time.Time,
) (Grant, error) {
	g := Grant{
		BasePoints: basePoints,
		Multiplier: a.multipliers.For(streakDays),
		Points:     a.multipliers.Reward(basePoints, streakDays),
	}
	if g.Points == 0 {
		return g, nil
	}

	account.Credit(g.Points, now)
	if err := s.Accounts.Update(ctx, account); err != nil {
		return Grant{}, fmt.Errorf("failed to credit account: %w", err)
	}

	if box != nil {
		payload := events.RewardGrantedPayload{
			Source:     source,
			SourceID:   sourceID,
			BasePoints: basePoints,
			Multiplier: g.Multiplier,
			Points:     g.Points,
			StreakDays: streakDays,
		}
		if err := box.Add(events.TypeRewardGranted, account.UserID, payload, now); err != nil {
			return Grant{}, err
		}
	}
	return g, nil
}
