// Package review applies study attempts to mastery records and builds the
// due queue.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/domain/queue"
	"github.com/phrazzld/lexis-api/internal/domain/srs"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/platform/tracing"
	"github.com/phrazzld/lexis-api/internal/service"
	"github.com/phrazzld/lexis-api/internal/store"
)

var tracer = tracing.Tracer("service/review")

// Config holds the tunables of the review service.
type Config struct {
	// PointsPerCorrect is added to the active session for each correct answer.
	PointsPerCorrect int
	DefaultLimit     int
	MaxLimit         int
	// Backfill enables topping up the due queue with unseen items.
	Backfill         bool
	DefaultDailyGoal int
	// Location defines the day used for the daily goal.
	Location *time.Location
}

// Result is the committed outcome of one review.
type Result struct {
	Record        domain.MasteryRecord   `json:"record"`
	Session       *domain.SessionSummary `json:"session,omitempty"`
	NewlyMastered bool                   `json:"newly_mastered"`
}

// QueueEntry is one item in the due queue.
type QueueEntry struct {
	ItemID uuid.UUID `json:"item_id"`
	// New is true for backfilled items the user has never seen.
	New bool `json:"new"`
}

// Service implements the review scheduler operations.
type Service struct {
	tx      store.Transactor
	engine  srs.Service
	emitter events.EventEmitter
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a review Service. emitter and clock may be nil.
func NewService(
	tx store.Transactor,
	engine srs.Service,
	emitter events.EventEmitter,
	cfg Config,
	clock func() time.Time,
	logger *slog.Logger,
) *Service {
	if tx == nil {
		panic("transactor cannot be nil")
	}
	if engine == nil {
		engine = srs.NewDefaultService()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.DefaultDailyGoal <= 0 {
		cfg.DefaultDailyGoal = domain.DefaultDailyGoal
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tx:      tx,
		engine:  engine,
		emitter: emitter,
		cfg:     cfg,
		now:     clock,
		logger:  logger.With(slog.String("component", "review_service")),
	}
}

// SubmitReview applies one attempt to the user's record for the item, creating
// the record on first exposure, and folds it into the user's ACTIVE session.
// The record row stays locked until commit, so concurrent attempts on the same
// pair are applied one after the other.
//
// The server clock is authoritative; attempt.Timestamp is not used for
// scheduling.
func (s *Service) SubmitReview(ctx context.Context, attempt domain.StudyAttempt) (_ *Result, err error) {
	ctx, span := tracer.Start(ctx, "review.SubmitReview")
	defer func() { tracing.RecordError(span, err); span.End() }()
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("user_id", attempt.UserID.String()),
		slog.String("item_id", attempt.ItemID.String()))

	if err := attempt.Validate(); err != nil {
		return nil, err
	}
	outcome := srs.Outcome{
		Correct:          attempt.IsCorrect,
		Grade:            attempt.Grade,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
	}

	var box service.Outbox
	var result Result
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		box.Reset()
		now := s.now()

		if _, err := st.Catalog.GetItem(ctx, attempt.ItemID); err != nil {
			return err
		}

		seed, err := domain.NewMasteryRecord(attempt.UserID, attempt.ItemID, now)
		if err != nil {
			return err
		}
		prev, _, err := st.Mastery.GetOrCreateForUpdate(ctx, seed)
		if err != nil {
			return err
		}

		next, err := s.engine.ApplyOutcome(prev, outcome, now)
		if err != nil {
			return err
		}
		if err := st.Mastery.Update(ctx, next); err != nil {
			return err
		}

		newlyMastered := prev.MasteryLevel < domain.MasteryMastered &&
			next.MasteryLevel >= domain.MasteryMastered
		if newlyMastered {
			payload := events.ItemMasteredPayload{ItemID: next.ItemID, Level: next.MasteryLevel}
			if err := box.Add(events.TypeItemMastered, next.UserID, payload, now); err != nil {
				return err
			}
		}

		sess, err := s.foldIntoSession(ctx, st, prev, attempt, newlyMastered, now)
		if err != nil {
			return err
		}

		result = Result{Record: *next, Session: sess, NewlyMastered: newlyMastered}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			log.Error("review aborted on invariant violation", slog.String("error", err.Error()))
		}
		return nil, err
	}

	box.Flush(ctx, s.emitter, log)
	log.Debug("review applied",
		slog.Bool("correct", attempt.IsCorrect),
		slog.String("level", result.Record.MasteryLevel.String()),
		slog.Int("interval_days", result.Record.ReviewIntervalDays))
	return &result, nil
}

// foldIntoSession updates the user's ACTIVE session, if any. A paused session
// is left untouched.
func (s *Service) foldIntoSession(
	ctx context.Context,
	st store.Stores,
	prev *domain.MasteryRecord,
	attempt domain.StudyAttempt,
	newlyMastered bool,
	now time.Time,
) (*domain.SessionSummary, error) {
	sess, err := st.Sessions.GetOpenForUpdate(ctx, attempt.UserID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionStatusActive {
		return nil, nil
	}

	points := 0
	if attempt.IsCorrect {
		points = s.cfg.PointsPerCorrect
	}
	updated, err := sess.OnAttempt(domain.AttemptResult{
		IsCorrect:      attempt.IsCorrect,
		FirstInSession: prev.LastReviewedAt == nil || prev.LastReviewedAt.Before(sess.StartTime),
		NewlyMastered:  newlyMastered,
		Points:         points,
		At:             now,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Sessions.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetDueQueue returns up to limit items for the user to study now: due items
// first, most overdue first, then unseen items up to what is left of the
// daily goal. A limit of 0 means the configured default; larger limits are
// capped.
func (s *Service) GetDueQueue(ctx context.Context, userID uuid.UUID, limit int) (_ []QueueEntry, err error) {
	ctx, span := tracer.Start(ctx, "review.GetDueQueue")
	defer func() { tracing.RecordError(span, err); span.End() }()

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidLimit, limit)
	case limit == 0:
		limit = s.cfg.DefaultLimit
	case limit > s.cfg.MaxLimit:
		limit = s.cfg.MaxLimit
	}

	var entries []QueueEntry
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		now := s.now()
		records, err := st.Mastery.ListDue(ctx, userID, now, limit)
		if err != nil {
			return err
		}
		due := queue.SelectDue(records, now, limit)

		ids := due
		if s.cfg.Backfill && len(due) < limit {
			if ids, err = s.backfill(ctx, st, userID, due, limit, now); err != nil {
				return err
			}
		}

		entries = make([]QueueEntry, len(ids))
		for i, id := range ids {
			entries[i] = QueueEntry{ItemID: id, New: i >= len(due)}
		}
		return nil
	})
	if err != nil {
		return nil, service.NewServiceError("review.GetDueQueue", "failed to build due queue", err)
	}
	return entries, nil
}

func (s *Service) backfill(
	ctx context.Context,
	st store.Stores,
	userID uuid.UUID,
	due []uuid.UUID,
	limit int,
	now time.Time,
) ([]uuid.UUID, error) {
	goal := s.cfg.DefaultDailyGoal
	account, err := st.Accounts.Get(ctx, userID)
	switch {
	case err == nil:
		goal = account.DailyGoal
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	learnedToday, err := st.Mastery.CountFirstLearnedSince(ctx, userID, s.startOfDay(now))
	if err != nil {
		return nil, err
	}
	quota := queue.BackfillQuota(len(due), limit, goal, learnedToday)
	if quota == 0 {
		return due, nil
	}

	items, err := st.Catalog.ListUnseen(ctx, userID, quota)
	if err != nil {
		return nil, err
	}
	fresh := make([]uuid.UUID, len(items))
	for i, item := range items {
		fresh[i] = item.ID
	}
	return queue.Backfill(due, fresh, len(due)+quota), nil
}

func (s *Service) startOfDay(now time.Time) time.Time {
	y, m, d := now.In(s.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.cfg.Location)
}

// EnrollItem adds the item to the user's learning list as a NEW record due
// immediately. Enrolling an item twice returns the existing record.
func (s *Service) EnrollItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, bool, error) {
	if userID == uuid.Nil {
		return nil, false, domain.ErrEmptyUserID
	}
	if itemID == uuid.Nil {
		return nil, false, domain.ErrEmptyItemID
	}

	var rec *domain.MasteryRecord
	var created bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if _, err := st.Catalog.GetItem(ctx, itemID); err != nil {
			return err
		}
		seed, err := domain.NewMasteryRecord(userID, itemID, s.now())
		if err != nil {
			return err
		}
		rec, created, err = st.Mastery.GetOrCreateForUpdate(ctx, seed)
		return err
	})
	if err != nil {
		return nil, false, service.NewServiceError("review.EnrollItem", "failed to enroll item", err)
	}
	return rec, created, nil
}

// ResetProgress moves the record back to NEW, keeping its study history.
func (s *Service) ResetProgress(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	if itemID == uuid.Nil {
		return nil, domain.ErrEmptyItemID
	}

	var rec *domain.MasteryRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		current, err := st.Mastery.GetForUpdate(ctx, userID, itemID)
		if err != nil {
			return err
		}
		if rec, err = s.engine.Reset(current, s.now()); err != nil {
			return err
		}
		return st.Mastery.Update(ctx, rec)
	})
	if err != nil {
		return nil, service.NewServiceError("review.ResetProgress", "failed to reset progress", err)
	}
	return rec, nil
}

// GetRecord returns the user's record for the item.
func (s *Service) GetRecord(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	if itemID == uuid.Nil {
		return nil, domain.ErrEmptyItemID
	}

	var rec *domain.MasteryRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		rec, err = st.Mastery.Get(ctx, userID, itemID)
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("review.GetRecord", "failed to load record", err)
	}
	return rec, nil
}

// GetMasteryBreakdown returns the number of the user's records at each level.
// Every level is present in the result.
func (s *Service) GetMasteryBreakdown(ctx context.Context, userID uuid.UUID) (map[domain.MasteryLevel]int, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}

	var counts map[domain.MasteryLevel]int
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		counts, err = st.Mastery.CountByLevel(ctx, userID)
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("review.GetMasteryBreakdown", "failed to count records", err)
	}
	for _, level := range domain.AllMasteryLevels() {
		if _, ok := counts[level]; !ok {
			counts[level] = 0
		}
	}
	return counts, nil
}
