package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/api/shared"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/service/reward"
)

// defaultCheckInWindow is how far back GET /api/checkins looks without a from date.
const defaultCheckInWindow = 30 * 24 * time.Hour

// RewardService is the subset of the streak and reward accountant used by RewardHandler.
type RewardService interface {
	CheckIn(ctx context.Context, userID, checkInID uuid.UUID, req reward.CheckInRequest) (*reward.CheckInResult, error)
	GetStreak(ctx context.Context, userID uuid.UUID) (*reward.StreakSummary, error)
	GetAccount(ctx context.Context, userID uuid.UUID) (*domain.LearnerAccount, error)
	ListCheckIns(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.CheckInRecord, error)
	CreateActivity(ctx context.Context, a *domain.CheckInActivity) error
	TransitionActivity(ctx context.Context, id uuid.UUID, to domain.ActivityStatus) (*domain.CheckInActivity, error)
}

// activityActions maps the action segment of POST /api/activities/{id}/{action}
// to the status it moves the activity to.
var activityActions = map[string]domain.ActivityStatus{
	"publish":  domain.ActivityStatusActive,
	"resume":   domain.ActivityStatusActive,
	"pause":    domain.ActivityStatusPaused,
	"complete": domain.ActivityStatusCompleted,
	"cancel":   domain.ActivityStatusCancelled,
}

// RewardHandler serves check-in, streak and account endpoints.
type RewardHandler struct {
	rewards RewardService
	clock   func() time.Time
	logger  *slog.Logger
}

// NewRewardHandler creates a new RewardHandler. A nil clock uses time.Now.
func NewRewardHandler(rewards RewardService, clock func() time.Time, logger *slog.Logger) *RewardHandler {
	if rewards == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("rewards cannot be nil for RewardHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for RewardHandler")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &RewardHandler{
		rewards: rewards,
		clock:   clock,
		logger:  logger.With(slog.String("component", "reward_handler")),
	}
}

// CheckIn handles POST /api/checkins/{id}.
func (h *RewardHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, checkInID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	var req CheckInRequest
	if r.ContentLength != 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}
	var date time.Time
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		date = d
	}

	result, err := h.rewards.CheckIn(r.Context(), userID, checkInID, reward.CheckInRequest{
		Date:     date,
		IsMakeup: req.IsMakeup,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to check in")
		return
	}

	log.Info("checked in",
		slog.String("check_in_id", checkInID.String()),
		slog.Bool("makeup", req.IsMakeup),
		slog.Int("points", result.Grant.Points))
	shared.RespondWithJSON(w, r, http.StatusCreated, CheckInResponse{
		Record:  result.Record,
		Streak:  result.Streak,
		Account: result.Account,
		Grant:   result.Grant,
	})
}

// ListCheckIns handles GET /api/checkins?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *RewardHandler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	now := h.clock()
	to, err := queryDate(r, "to", now)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	from, err := queryDate(r, "from", to.Add(-defaultCheckInWindow))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	records, err := h.rewards.ListCheckIns(r.Context(), userID, from, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list check-ins")
		return
	}
	if records == nil {
		records = []domain.CheckInRecord{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CheckInListResponse{Records: records})
}

// GetStreak handles GET /api/streak.
func (h *RewardHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	summary, err := h.rewards.GetStreak(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load streak")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// GetAccount handles GET /api/account.
func (h *RewardHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	account, err := h.rewards.GetAccount(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load account")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, account)
}

// CreateActivity handles POST /api/activities.
func (h *RewardHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	activity, err := req.toDomain()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.rewards.CreateActivity(r.Context(), activity); err != nil {
		HandleAPIError(w, r, err, "Failed to create activity")
		return
	}
	log.Info("check-in activity created",
		slog.String("activity_id", activity.ID.String()),
		slog.String("status", string(activity.Status)))
	shared.RespondWithJSON(w, r, http.StatusCreated, activity)
}

// TransitionActivity handles POST /api/activities/{id}/{action}, where action
// is publish, pause, resume, complete or cancel.
func (h *RewardHandler) TransitionActivity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	activityID, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	action := chi.URLParam(r, "action")
	to, ok := activityActions[action]
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Unknown activity action")
		return
	}

	activity, err := h.rewards.TransitionActivity(r.Context(), activityID, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update activity")
		return
	}
	log.Info("check-in activity updated",
		slog.String("activity_id", activityID.String()),
		slog.String("action", action),
		slog.String("status", string(activity.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, activity)
}
