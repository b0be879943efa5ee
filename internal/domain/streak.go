package domain

import (
	"time"

	"github.com/google/uuid"
)

// StreakState tracks consecutive calendar days with learning activity.
type StreakState struct {
	UserID           uuid.UUID  `json:"user_id"`
	CurrentStreak    int        `json:"current_streak"`
	MaxStreak        int        `json:"max_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewStreakState returns the state of a user with no recorded activity.
func NewStreakState(userID uuid.UUID) *StreakState {
	return &StreakState{UserID: userID}
}

// CalendarDay truncates t to midnight of its calendar date in loc. The result
// is expressed in UTC so that day arithmetic is free of DST effects.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b. Both arguments
// must already be calendar days.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
