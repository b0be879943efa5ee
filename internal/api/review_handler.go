package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/api/shared"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/service/review"
)

// ReviewService is the subset of the review scheduler used by ReviewHandler.
type ReviewService interface {
	SubmitReview(ctx context.Context, attempt domain.StudyAttempt) (*review.Result, error)
	GetDueQueue(ctx context.Context, userID uuid.UUID, limit int) ([]review.QueueEntry, error)
	EnrollItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, bool, error)
	ResetProgress(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error)
	GetRecord(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error)
	GetMasteryBreakdown(ctx context.Context, userID uuid.UUID) (map[domain.MasteryLevel]int, error)
}

// ReviewHandler serves review submission and mastery endpoints.
type ReviewHandler struct {
	reviews ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(reviews ReviewService, logger *slog.Logger) *ReviewHandler {
	if reviews == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("reviews cannot be nil for ReviewHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}
	return &ReviewHandler{
		reviews: reviews,
		logger:  logger.With(slog.String("component", "review_handler")),
	}
}

// SubmitReview handles POST /api/reviews.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		// Already checked by the uuid tag.
		HandleAPIError(w, r, domain.ErrEmptyItemID, "")
		return
	}

	attempt := domain.StudyAttempt{
		UserID:           userID,
		ItemID:           itemID,
		IsCorrect:        *req.IsCorrect,
		StudyType:        domain.StudyType(req.StudyType),
		TimeSpentSeconds: req.TimeSpentSeconds,
		Grade:            req.Grade,
	}
	if req.Timestamp != nil {
		attempt.Timestamp = *req.Timestamp
	}

	result, err := h.reviews.SubmitReview(r.Context(), attempt)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit review")
		return
	}

	log.Debug("review submitted",
		slog.String("item_id", itemID.String()),
		slog.Bool("correct", attempt.IsCorrect),
		slog.Int("interval_days", result.Record.ReviewIntervalDays))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetDueQueue handles GET /api/reviews/due?limit=N.
func (h *ReviewHandler) GetDueQueue(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	entries, err := h.reviews.GetDueQueue(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load due queue")
		return
	}
	if entries == nil {
		entries = []review.QueueEntry{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, DueQueueResponse{Items: entries, Count: len(entries)})
}

// EnrollItem handles POST /api/items/{id}/enroll.
func (h *ReviewHandler) EnrollItem(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, itemID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	rec, created, err := h.reviews.EnrollItem(r.Context(), userID, itemID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to enroll item")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	shared.RespondWithJSON(w, r, status, EnrollResponse{Record: rec, Created: created})
}

// ResetProgress handles POST /api/items/{id}/reset.
func (h *ReviewHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, itemID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	rec, err := h.reviews.ResetProgress(r.Context(), userID, itemID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reset progress")
		return
	}
	log.Info("mastery progress reset", slog.String("item_id", itemID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, rec)
}

// GetRecord handles GET /api/items/{id}/mastery.
func (h *ReviewHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	userID, itemID, ok := handleUserIDAndPathUUID(w, r, "id", log)
	if !ok {
		return
	}

	rec, err := h.reviews.GetRecord(r.Context(), userID, itemID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load mastery record")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, rec)
}

// GetMasteryBreakdown handles GET /api/mastery/breakdown.
func (h *ReviewHandler) GetMasteryBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	counts, err := h.reviews.GetMasteryBreakdown(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load mastery breakdown")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, counts)
}
