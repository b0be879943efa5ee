package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultDailyGoal is the number of new items a learner aims for per day.
const DefaultDailyGoal = 10

// LearnerAccount holds per-user settings and the point balance.
type LearnerAccount struct {
	UserID            uuid.UUID `json:"user_id"`
	DailyGoal         int       `json:"daily_goal"`
	PointBalance      int       `json:"point_balance"`
	TotalPointsEarned int       `json:"total_points_earned"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewLearnerAccount creates an account with zero balance.
func NewLearnerAccount(userID uuid.UUID, dailyGoal int, now time.Time) *LearnerAccount {
	if dailyGoal <= 0 {
		dailyGoal = DefaultDailyGoal
	}
	return &LearnerAccount{
		UserID:    userID,
		DailyGoal: dailyGoal,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Debit removes points from the balance. It fails without changing the
// balance when the balance is too small.
func (a *LearnerAccount) Debit(points int, now time.Time) error {
	if points < 0 {
		return fmt.Errorf("%w: negative debit %d", ErrValidation, points)
	}
	if a.PointBalance < points {
		return fmt.Errorf("%w: balance %d, required %d", ErrInsufficientPoints, a.PointBalance, points)
	}
	a.PointBalance -= points
	a.UpdatedAt = now
	return nil
}

// Credit adds earned points to the balance and the lifetime total.
func (a *LearnerAccount) Credit(points int, now time.Time) {
	if points <= 0 {
		return
	}
	a.PointBalance += points
	a.TotalPointsEarned += points
	a.UpdatedAt = now
}
