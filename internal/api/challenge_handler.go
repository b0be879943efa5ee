package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/api/shared"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/service/challenge"
)

const defaultLeaderboardLimit = 10

// ChallengeService is the subset of the challenge service used by ChallengeHandler.
type ChallengeService interface {
	Create(ctx context.Context, c *domain.Challenge) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Challenge, error)
	Transition(ctx context.Context, id uuid.UUID, to domain.ChallengeStatus) (*challenge.TransitionResult, error)
	Join(ctx context.Context, challengeID, userID uuid.UUID) (*domain.ChallengeParticipation, error)
	Leave(ctx context.Context, challengeID, userID uuid.UUID) error
	RecordProgress(ctx context.Context, challengeID, userID uuid.UUID, req challenge.ProgressRequest) (*domain.ChallengeParticipation, error)
	CompleteParticipation(ctx context.Context, challengeID, userID uuid.UUID) (*domain.ChallengeParticipation, error)
	AbandonParticipation(ctx context.Context, challengeID, userID uuid.UUID) (*domain.ChallengeParticipation, error)
	Leaderboard(ctx context.Context, challengeID uuid.UUID, limit int) ([]challenge.LeaderboardEntry, error)
}

// challengeActions maps the action segment of POST /api/challenges/{id}/status/{action}
// to the status it moves the challenge to.
var challengeActions = map[string]domain.ChallengeStatus{
	"publish":  domain.ChallengeStatusPublished,
	"start":    domain.ChallengeStatusActive,
	"complete": domain.ChallengeStatusCompleted,
	"cancel":   domain.ChallengeStatusCancelled,
}

// ChallengeHandler serves the challenge endpoints.
type ChallengeHandler struct {
	challenges ChallengeService
	logger     *slog.Logger
}

// NewChallengeHandler creates a new ChallengeHandler.
func NewChallengeHandler(challenges ChallengeService, logger *slog.Logger) *ChallengeHandler {
	if challenges == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("challenges cannot be nil for ChallengeHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ChallengeHandler")
	}
	return &ChallengeHandler{
		challenges: challenges,
		logger:     logger.With(slog.String("component", "challenge_handler")),
	}
}

// Create handles POST /api/challenges.
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChallengeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	c := req.toDomain()
	if err := h.challenges.Create(r.Context(), c); err != nil {
		HandleAPIError(w, r, err, "Failed to create challenge")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, c)
}

// Get handles GET /api/challenges/{id}.
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	c, err := h.challenges.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load challenge")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, c)
}

// Transition handles POST /api/challenges/{id}/status/{action}, where action
// is publish, start, complete or cancel. Completing answers with the awards.
func (h *ChallengeHandler) Transition(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	action := chi.URLParam(r, "action")
	to, ok := challengeActions[action]
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "Unknown challenge action")
		return
	}

	result, err := h.challenges.Transition(r.Context(), id, to)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update challenge")
		return
	}
	log.Info("challenge updated",
		slog.String("challenge_id", id.String()),
		slog.String("action", action),
		slog.Int("awards", len(result.Awards)))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Join handles POST /api/challenges/{id}/join.
func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	p, err := h.challenges.Join(r.Context(), id, userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to join challenge")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, p)
}

// Leave handles DELETE /api/challenges/{id}/join.
func (h *ChallengeHandler) Leave(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	if err := h.challenges.Leave(r.Context(), id, userID); err != nil {
		HandleAPIError(w, r, err, "Failed to leave challenge")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordProgress handles POST /api/challenges/{id}/progress.
func (h *ChallengeHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	var req ChallengeProgressRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.challenges.RecordProgress(r.Context(), id, userID, challenge.ProgressRequest{
		Score:          req.Score,
		CompletedTasks: req.CompletedTasks,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record progress")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// Complete handles POST /api/challenges/{id}/complete.
func (h *ChallengeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.participationAction(w, r, h.challenges.CompleteParticipation, "Failed to complete challenge")
}

// Abandon handles POST /api/challenges/{id}/abandon.
func (h *ChallengeHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.participationAction(w, r, h.challenges.AbandonParticipation, "Failed to abandon challenge")
}

func (h *ChallengeHandler) participationAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, challengeID, userID uuid.UUID) (*domain.ChallengeParticipation, error),
	fallback string,
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, id, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	p, err := action(r.Context(), id, userID)
	if err != nil {
		HandleAPIError(w, r, err, fallback)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, p)
}

// Leaderboard handles GET /api/challenges/{id}/leaderboard?limit=N.
func (h *ChallengeHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if limit == 0 {
		limit = defaultLeaderboardLimit
	}

	entries, err := h.challenges.Leaderboard(r.Context(), id, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []challenge.LeaderboardEntry{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, LeaderboardResponse{ChallengeID: id, Entries: entries})
}
