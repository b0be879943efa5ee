package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/service/challenge"
	"github.com/phrazzld/lexis-api/internal/service/review"
	"github.com/phrazzld/lexis-api/internal/service/reward"
)

// SubmitReviewRequest is the body of POST /api/reviews.
type SubmitReviewRequest struct {
	ItemID           string `json:"item_id"            validate:"required,uuid"`
	IsCorrect        *bool  `json:"is_correct"         validate:"required"`
	StudyType        string `json:"study_type"         validate:"required"`
	TimeSpentSeconds int    `json:"time_spent_seconds" validate:"gte=0,lte=86400"`
	Grade            int    `json:"grade"              validate:"gte=0,lte=5"`
	// Timestamp is when the client observed the answer. The server clock is
	// used for scheduling.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// DueQueueResponse is the body of GET /api/reviews/due.
type DueQueueResponse struct {
	Items []review.QueueEntry `json:"items"`
	Count int                 `json:"count"`
}

// EnrollResponse is the body of POST /api/items/{id}/enroll.
type EnrollResponse struct {
	Record  *domain.MasteryRecord `json:"record"`
	Created bool                  `json:"created"`
}

// StartSessionRequest is the body of POST /api/sessions.
type StartSessionRequest struct {
	SessionType string `json:"session_type" validate:"required"`
}

// CheckInRequest is the body of POST /api/checkins/{id}. An empty date means today.
type CheckInRequest struct {
	Date     string `json:"date"      validate:"omitempty,datetime=2006-01-02"`
	IsMakeup bool   `json:"is_makeup"`
}

// CheckInResponse is the body of a successful check-in.
type CheckInResponse struct {
	Record  domain.CheckInRecord  `json:"record"`
	Streak  domain.StreakState    `json:"streak"`
	Account domain.LearnerAccount `json:"account"`
	Grant   reward.Grant          `json:"grant"`
}

// CheckInListResponse is the body of GET /api/checkins.
type CheckInListResponse struct {
	Records []domain.CheckInRecord `json:"records"`
}

// CreateActivityRequest is the body of POST /api/activities. New activities
// start as drafts.
type CreateActivityRequest struct {
	Title         string              `json:"title"           validate:"required,max=200"`
	StartDate     string              `json:"start_date"      validate:"required,datetime=2006-01-02"`
	EndDate       string              `json:"end_date"        validate:"omitempty,datetime=2006-01-02"`
	BasePoints    int                 `json:"base_points"     validate:"gte=0"`
	AllowMakeup   bool                `json:"allow_makeup"`
	MakeupCost    int                 `json:"makeup_cost"     validate:"gte=0"`
	MaxMakeupDays int                 `json:"max_makeup_days" validate:"gte=0"`
	Rules         domain.CheckInRules `json:"rules"`
}

func (r CreateActivityRequest) toDomain() (*domain.CheckInActivity, error) {
	start, err := parseDate(r.StartDate)
	if err != nil {
		return nil, err
	}
	a := &domain.CheckInActivity{
		Title:         r.Title,
		StartDate:     start,
		BasePoints:    r.BasePoints,
		AllowMakeup:   r.AllowMakeup,
		MakeupCost:    r.MakeupCost,
		MaxMakeupDays: r.MaxMakeupDays,
		Rules:         r.Rules,
	}
	if r.EndDate != "" {
		end, err := parseDate(r.EndDate)
		if err != nil {
			return nil, err
		}
		a.EndDate = &end
	}
	return a, nil
}

// CreateChallengeRequest is the body of POST /api/challenges. New challenges
// start as drafts.
type CreateChallengeRequest struct {
	Title           string     `json:"title"            validate:"required,max=200"`
	Description     string     `json:"description"      validate:"max=2000"`
	SessionType     string     `json:"session_type"     validate:"required"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	MaxParticipants int        `json:"max_participants" validate:"gte=0"`
	RewardPoints    int        `json:"reward_points"    validate:"gte=0"`
	TotalTasks      int        `json:"total_tasks"      validate:"gte=0"`
}

func (r CreateChallengeRequest) toDomain() *domain.Challenge {
	return &domain.Challenge{
		Title:           r.Title,
		Description:     r.Description,
		SessionType:     domain.SessionType(r.SessionType),
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime,
		MaxParticipants: r.MaxParticipants,
		RewardPoints:    r.RewardPoints,
		TotalTasks:      r.TotalTasks,
	}
}

// ChallengeProgressRequest is the body of POST /api/challenges/{id}/progress.
// Omitted fields are left unchanged.
type ChallengeProgressRequest struct {
	Score          *int `json:"score"           validate:"omitempty,gte=0"`
	CompletedTasks *int `json:"completed_tasks" validate:"omitempty,gte=0"`
}

// LeaderboardResponse is the body of GET /api/challenges/{id}/leaderboard.
type LeaderboardResponse struct {
	ChallengeID uuid.UUID                    `json:"challenge_id"`
	Entries     []challenge.LeaderboardEntry `json:"entries"`
}
