package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCheckInActivityCovers(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	a := &CheckInActivity{StartDate: start, EndDate: &end}

	if !a.Covers(start) || !a.Covers(end) {
		t.Errorf("Bounds are inclusive")
	}
	if a.Covers(start.AddDate(0, 0, -1)) || a.Covers(end.AddDate(0, 0, 1)) {
		t.Errorf("Dates outside the period must not be covered")
	}

	open := &CheckInActivity{StartDate: start}
	if !open.Covers(start.AddDate(5, 0, 0)) {
		t.Errorf("An activity without an end date covers every later day")
	}
}

func TestCheckInActivityCheckMakeup(t *testing.T) {
	today := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	a := &CheckInActivity{AllowMakeup: true, MaxMakeupDays: 3, MakeupCost: 20}

	days, err := a.CheckMakeup(today.AddDate(0, 0, -3), today)
	if err != nil || days != 3 {
		t.Errorf("Expected 3 days back, got %d, %v", days, err)
	}

	if _, err := a.CheckMakeup(today.AddDate(0, 0, -4), today); !errors.Is(err, ErrMakeupNotAllowed) {
		t.Errorf("Expected ErrMakeupNotAllowed beyond window, got %v", err)
	}
	if _, err := a.CheckMakeup(today, today); !errors.Is(err, ErrMakeupNotAllowed) {
		t.Errorf("Expected ErrMakeupNotAllowed for today, got %v", err)
	}

	a.AllowMakeup = false
	if _, err := a.CheckMakeup(today.AddDate(0, 0, -1), today); !errors.Is(err, ErrStateConflict) {
		t.Errorf("Expected a state conflict when makeup is disabled, got %v", err)
	}
}

func TestLearnerAccountDebitCredit(t *testing.T) {
	now := time.Now().UTC()
	acct := NewLearnerAccount(uuid.New(), 0, now)
	if acct.DailyGoal != DefaultDailyGoal {
		t.Errorf("Expected default daily goal, got %d", acct.DailyGoal)
	}

	acct.Credit(30, now)
	if err := acct.Debit(50, now); !errors.Is(err, ErrInsufficientResource) {
		t.Errorf("Expected ErrInsufficientResource, got %v", err)
	}
	if acct.PointBalance != 30 {
		t.Errorf("A failed debit must not change the balance, got %d", acct.PointBalance)
	}

	if err := acct.Debit(20, now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if acct.PointBalance != 10 || acct.TotalPointsEarned != 30 {
		t.Errorf("Unexpected balances: %+v", acct)
	}
}

func TestCalendarDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	instant := time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC)

	if got := CalendarDay(instant, time.UTC); !got.Equal(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected UTC day %v", got)
	}
	if got := CalendarDay(instant, tokyo); !got.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected JST day %v", got)
	}
	if DaysBetween(CalendarDay(instant, time.UTC), CalendarDay(instant, tokyo)) != 1 {
		t.Errorf("Expected one day apart")
	}
}

func TestCheckInActivityTransitions(t *testing.T) {
	now := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	a := &CheckInActivity{Status: ActivityStatusDraft}

	if err := a.TransitionTo(ActivityStatusPaused, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected a draft to refuse pausing, got %v", err)
	}
	for _, to := range []ActivityStatus{
		ActivityStatusActive, ActivityStatusPaused, ActivityStatusActive, ActivityStatusCompleted,
	} {
		if err := a.TransitionTo(to, now); err != nil {
			t.Fatalf("Moving to %s: %v", to, err)
		}
	}
	if !a.UpdatedAt.Equal(now) {
		t.Errorf("Expected UpdatedAt to be stamped")
	}
	if err := a.TransitionTo(ActivityStatusActive, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected a completed activity to stay completed, got %v", err)
	}
}

func TestCheckInRulesCheck(t *testing.T) {
	var none CheckInRules
	if !none.IsZero() || none.Check(0, 0) != nil {
		t.Errorf("Empty rules must always pass")
	}

	r := CheckInRules{MinStudyMinutes: 15, RequiredSessions: 2}
	if err := r.Check(1, 3600); !errors.Is(err, ErrCheckInRulesNotMet) {
		t.Errorf("Expected too few sessions to fail, got %v", err)
	}
	if err := r.Check(2, 14*60+59); !errors.Is(err, ErrCheckInRulesNotMet) {
		t.Errorf("Expected too little study time to fail, got %v", err)
	}
	if err := r.Check(2, 15*60); err != nil {
		t.Errorf("Expected rules to pass at the minimum, got %v", err)
	}
}
