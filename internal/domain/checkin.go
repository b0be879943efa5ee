package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityStatus is the lifecycle state of a check-in activity.
type ActivityStatus string

// Activity statuses.
const (
	ActivityStatusDraft     ActivityStatus = "DRAFT"
	ActivityStatusActive    ActivityStatus = "ACTIVE"
	ActivityStatusCompleted ActivityStatus = "COMPLETED"
	ActivityStatusPaused    ActivityStatus = "PAUSED"
	ActivityStatusCancelled ActivityStatus = "CANCELLED"
)

var activityTransitions = map[ActivityStatus][]ActivityStatus{
	ActivityStatusDraft:  {ActivityStatusActive, ActivityStatusCancelled},
	ActivityStatusActive: {ActivityStatusPaused, ActivityStatusCompleted, ActivityStatusCancelled},
	ActivityStatusPaused: {ActivityStatusActive, ActivityStatusCompleted, ActivityStatusCancelled},
}

// CheckInRules are the participation rules of an activity. They are stored as
// a JSON document and decoded into this struct at the store boundary.
type CheckInRules struct {
	MinStudyMinutes  int    `json:"min_study_minutes,omitempty"`
	RequiredSessions int    `json:"required_sessions,omitempty"`
	Description      string `json:"description,omitempty"`
}

// Check reports whether a day with the given number of completed sessions
// and total study time satisfies the rules. Zero-valued rules always pass.
func (r CheckInRules) Check(sessions, studySeconds int) error {
	if sessions < r.RequiredSessions {
		return fmt.Errorf("%w: %d of %d required sessions completed",
			ErrCheckInRulesNotMet, sessions, r.RequiredSessions)
	}
	if studySeconds < r.MinStudyMinutes*60 {
		return fmt.Errorf("%w: %d of %d minutes studied",
			ErrCheckInRulesNotMet, studySeconds/60, r.MinStudyMinutes)
	}
	return nil
}

// IsZero reports whether the rules impose nothing.
func (r CheckInRules) IsZero() bool {
	return r.MinStudyMinutes <= 0 && r.RequiredSessions <= 0
}

// CheckInActivity is an operator-defined daily check-in campaign.
type CheckInActivity struct {
	ID            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	Status        ActivityStatus `json:"status"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	BasePoints    int            `json:"base_points"`
	AllowMakeup   bool           `json:"allow_makeup"`
	MakeupCost    int            `json:"makeup_cost"`
	MaxMakeupDays int            `json:"max_makeup_days"`
	Rules         CheckInRules   `json:"rules"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Covers reports whether day falls within the activity period. Both bounds
// are inclusive calendar days.
func (a *CheckInActivity) Covers(day time.Time) bool {
	if day.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !day.After(*a.EndDate)
}

// TransitionTo moves the activity to status to. A draft is published by
// moving it to ACTIVE, and a paused activity resumes the same way. Completed
// and cancelled activities accept no transitions.
func (a *CheckInActivity) TransitionTo(to ActivityStatus, now time.Time) error {
	for _, next := range activityTransitions[a.Status] {
		if next == to {
			a.Status = to
			a.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: activity cannot move from %s to %s", ErrInvalidState, a.Status, to)
}

// CheckMakeup validates a makeup for day submitted on today and returns the
// number of days it reaches back.
func (a *CheckInActivity) CheckMakeup(day, today time.Time) (int, error) {
	if !a.AllowMakeup {
		return 0, fmt.Errorf("%w: activity does not allow makeup", ErrMakeupNotAllowed)
	}
	daysBack := DaysBetween(day, today)
	if daysBack < 1 {
		return 0, fmt.Errorf("%w: makeup date must be in the past", ErrMakeupNotAllowed)
	}
	if daysBack > a.MaxMakeupDays {
		return 0, fmt.Errorf("%w: %d days back exceeds limit of %d",
			ErrMakeupNotAllowed, daysBack, a.MaxMakeupDays)
	}
	return daysBack, nil
}

// CheckInStatus is the state of a single check-in record.
type CheckInStatus string

// Check-in record statuses.
const (
	CheckInStatusPending   CheckInStatus = "PENDING"
	CheckInStatusCompleted CheckInStatus = "COMPLETED"
	CheckInStatusFailed    CheckInStatus = "FAILED"
	CheckInStatusCancelled CheckInStatus = "CANCELLED"
)

// CheckInType distinguishes regular check-ins from makeups.
type CheckInType string

// Check-in record types.
const (
	CheckInTypeNormal CheckInType = "NORMAL"
	CheckInTypeMakeup CheckInType = "MAKEUP"
	CheckInTypeBonus  CheckInType = "BONUS"
)

// CheckInRecord is one user's check-in for one activity on one date. At most
// one non-cancelled record exists per (UserID, CheckInID, Date).
type CheckInRecord struct {
	ID           uuid.UUID     `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	CheckInID    uuid.UUID     `json:"check_in_id"`
	Date         time.Time     `json:"date"`
	Status       CheckInStatus `json:"status"`
	Type         CheckInType   `json:"type"`
	IsMakeup     bool          `json:"is_makeup"`
	MakeupCost   int           `json:"makeup_cost"`
	PointsEarned int           `json:"points_earned"`
	StreakDays   int           `json:"streak_days"`
	CreatedAt    time.Time     `json:"created_at"`
}
