package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

// Challenge statuses.
const (
	ChallengeStatusDraft     ChallengeStatus = "DRAFT"
	ChallengeStatusPublished ChallengeStatus = "PUBLISHED"
	ChallengeStatusActive    ChallengeStatus = "ACTIVE"
	ChallengeStatusCompleted ChallengeStatus = "COMPLETED"
	ChallengeStatusCancelled ChallengeStatus = "CANCELLED"
)

var challengeTransitions = map[ChallengeStatus][]ChallengeStatus{
	ChallengeStatusDraft:     {ChallengeStatusPublished, ChallengeStatusCancelled},
	ChallengeStatusPublished: {ChallengeStatusActive, ChallengeStatusCancelled},
	ChallengeStatusActive:    {ChallengeStatusCompleted, ChallengeStatusCancelled},
}

// IsValid reports whether s is a known challenge status.
func (s ChallengeStatus) IsValid() bool {
	switch s {
	case ChallengeStatusDraft, ChallengeStatusPublished, ChallengeStatusActive,
		ChallengeStatusCompleted, ChallengeStatusCancelled:
		return true
	}
	return false
}

// CanJoin reports whether users may join a challenge in this status.
func (s ChallengeStatus) CanJoin() bool {
	return s == ChallengeStatusPublished || s == ChallengeStatusActive
}

// Challenge is a time-boxed competition. Participants report progress and
// scores; when the challenge completes, every participant who finished it is
// ranked and rewarded.
type Challenge struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	SessionType SessionType     `json:"session_type"`
	Status      ChallengeStatus `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	// MaxParticipants of 0 means unlimited.
	MaxParticipants     int       `json:"max_participants"`
	CurrentParticipants int       `json:"current_participants"`
	RewardPoints        int       `json:"reward_points"`
	TotalTasks          int       `json:"total_tasks"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Validate checks the fields a caller supplies when creating a challenge.
func (c *Challenge) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("%w: challenge title is required", ErrValidation)
	}
	if !c.SessionType.IsValid() {
		return ErrInvalidSessionType
	}
	if c.MaxParticipants < 0 || c.RewardPoints < 0 || c.TotalTasks < 0 {
		return fmt.Errorf("%w: challenge points and limits cannot be negative", ErrValidation)
	}
	if c.StartTime.IsZero() {
		return fmt.Errorf("%w: challenge start time is required", ErrInvalidDate)
	}
	if c.EndTime != nil && !c.EndTime.After(c.StartTime) {
		return fmt.Errorf("%w: challenge ends before it starts", ErrInvalidDate)
	}
	return nil
}

// IsFull reports whether the participant limit has been reached.
func (c *Challenge) IsFull() bool {
	return c.MaxParticipants > 0 && c.CurrentParticipants >= c.MaxParticipants
}

// TransitionTo moves the challenge to status to. Terminal statuses accept no
// transitions.
func (c *Challenge) TransitionTo(to ChallengeStatus, now time.Time) error {
	for _, next := range challengeTransitions[c.Status] {
		if next == to {
			c.Status = to
			c.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: challenge cannot move from %s to %s", ErrInvalidState, c.Status, to)
}

// ParticipationStatus is the state of one user's participation.
type ParticipationStatus string

// Participation statuses.
const (
	ParticipationStatusRegistered ParticipationStatus = "REGISTERED"
	ParticipationStatusActive     ParticipationStatus = "ACTIVE"
	ParticipationStatusCompleted  ParticipationStatus = "COMPLETED"
	ParticipationStatusAbandoned  ParticipationStatus = "ABANDONED"
)

// IsOpen reports whether the participant may still report progress.
func (s ParticipationStatus) IsOpen() bool {
	return s == ParticipationStatusRegistered || s == ParticipationStatusActive
}

// ChallengeParticipation is one user's entry in a challenge. At most one
// exists per (ChallengeID, UserID).
type ChallengeParticipation struct {
	ID                 uuid.UUID           `json:"id"`
	ChallengeID        uuid.UUID           `json:"challenge_id"`
	UserID             uuid.UUID           `json:"user_id"`
	Status             ParticipationStatus `json:"status"`
	CurrentScore       int                 `json:"current_score"`
	BestScore          int                 `json:"best_score"`
	CompletedTasks     int                 `json:"completed_tasks"`
	ProgressPercentage float64             `json:"progress_percentage"`
	// Ranking is set when the challenge completes; 0 means unranked.
	Ranking        int        `json:"ranking"`
	RewardPoints   int        `json:"reward_points"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// RecordProgress applies a progress report. A nil argument leaves the field
// unchanged. BestScore never decreases and CompletedTasks is capped at
// totalTasks when the challenge has a task count.
func (p *ChallengeParticipation) RecordProgress(score, completedTasks *int, totalTasks int, now time.Time) error {
	if !p.Status.IsOpen() {
		return fmt.Errorf("%w: participation is %s", ErrInvalidState, p.Status)
	}
	if score != nil {
		if *score < 0 {
			return fmt.Errorf("%w: score cannot be negative", ErrValidation)
		}
		p.CurrentScore = *score
		p.BestScore = max(p.BestScore, *score)
	}
	if completedTasks != nil {
		if *completedTasks < 0 {
			return fmt.Errorf("%w: completed tasks cannot be negative", ErrValidation)
		}
		p.CompletedTasks = *completedTasks
		if totalTasks > 0 {
			p.CompletedTasks = min(p.CompletedTasks, totalTasks)
			p.ProgressPercentage = float64(p.CompletedTasks) / float64(totalTasks) * 100
		}
	}
	p.Status = ParticipationStatusActive
	p.LastActivityAt = &now
	return nil
}

// Complete marks the participation finished with full progress.
func (p *ChallengeParticipation) Complete(now time.Time) error {
	if !p.Status.IsOpen() {
		return fmt.Errorf("%w: participation is %s", ErrInvalidState, p.Status)
	}
	p.Status = ParticipationStatusCompleted
	p.ProgressPercentage = 100
	p.CompletedAt = &now
	p.LastActivityAt = &now
	return nil
}

// Abandon marks the participation given up.
func (p *ChallengeParticipation) Abandon(now time.Time) error {
	if !p.Status.IsOpen() {
		return fmt.Errorf("%w: participation is %s", ErrInvalidState, p.Status)
	}
	p.Status = ParticipationStatusAbandoned
	p.LastActivityAt = &now
	return nil
}

// RankedPlaces is how many leading finishers earn a rank bonus.
const RankedPlaces = 3

// RankReward is the reward for finishing at rank (1-based) in a challenge
// worth base points: base*(1.5-0.1*rank) for the leading places and base for
// everyone else. Integer arithmetic keeps the result exact.
func RankReward(base, rank int) int {
	if rank >= 1 && rank <= RankedPlaces {
		return base * (15 - rank) / 10
	}
	return base
}
