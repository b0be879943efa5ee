package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/api/shared"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/service/session"
	"github.com/phrazzld/lexis-api/internal/store"
)

// SessionService is the subset of the session aggregator used by SessionHandler.
type SessionService interface {
	Start(ctx context.Context, userID uuid.UUID, sessionType domain.SessionType) (*domain.SessionSummary, error)
	End(ctx context.Context, userID, sessionID uuid.UUID) (*session.EndResult, error)
	Pause(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error)
	Resume(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error)
	Abandon(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error)
	Get(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*domain.SessionSummary, error)
}

// SessionHandler serves the session lifecycle endpoints.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	if sessions == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("sessions cannot be nil for SessionHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SessionHandler")
	}
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With(slog.String("component", "session_handler")),
	}
}

// Start handles POST /api/sessions.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req StartSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	sess, err := h.sessions.Start(r.Context(), userID, domain.SessionType(req.SessionType))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start session")
		return
	}
	log.Debug("session started", slog.String("session_id", sess.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, sess)
}

// GetActive handles GET /api/sessions/active. It answers 204 when the user
// has no open session.
func (h *SessionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.GetActive(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load active session")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sess)
}

// Get handles GET /api/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	sess, err := h.sessions.Get(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load session")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sess)
}

// End handles POST /api/sessions/{id}/end.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	result, err := h.sessions.End(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to end session")
		return
	}
	log.Info("session ended",
		slog.String("session_id", sessionID.String()),
		slog.Int("points", result.Grant.Points),
		slog.Int("streak", result.Streak.CurrentStreak))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Pause handles POST /api/sessions/{id}/pause.
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.Pause, "Failed to pause session")
}

// Resume handles POST /api/sessions/{id}/resume.
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.Resume, "Failed to resume session")
}

// Abandon handles POST /api/sessions/{id}/abandon.
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.sessions.Abandon, "Failed to abandon session")
}

func (h *SessionHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error),
	failure string,
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, sessionID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}
	sess, err := apply(r.Context(), userID, sessionID)
	if err != nil {
		HandleAPIError(w, r, err, failure)
		return
	}
	log.Debug("session transitioned",
		slog.String("session_id", sessionID.String()),
		slog.String("status", string(sess.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, sess)
}
