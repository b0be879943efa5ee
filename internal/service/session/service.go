// Package session manages the lifecycle of learning sessions: start, pause,
// resume, end with streak and reward accounting, and the idle sweep.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/platform/tracing"
	"github.com/phrazzld/lexis-api/internal/service"
	"github.com/phrazzld/lexis-api/internal/service/reward"
	"github.com/phrazzld/lexis-api/internal/store"
)

var tracer = tracing.Tracer("service/session")

// Config holds the session tunables.
type Config struct {
	// IdleTimeout is how long an ACTIVE session may go without attempts
	// before the sweep abandons it.
	IdleTimeout time.Duration
	// PausedIdleTimeout is the same allowance for PAUSED sessions, so a
	// forgotten pause never blocks Start for good.
	PausedIdleTimeout time.Duration
	SweepBatchSize    int
}

// EndResult is the committed outcome of ending a session.
type EndResult struct {
	Session domain.SessionSummary `json:"session"`
	Streak  domain.StreakState    `json:"streak"`
	Grant   reward.Grant          `json:"grant"`
}

// Service implements the session operations.
type Service struct {
	tx         store.Transactor
	accountant *reward.Accountant
	emitter    events.EventEmitter
	cfg        Config
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a session Service. emitter and clock may be nil.
func NewService(
	tx store.Transactor,
	accountant *reward.Accountant,
	emitter events.EventEmitter,
	cfg Config,
	clock func() time.Time,
	logger *slog.Logger,
) *Service {
	if tx == nil {
		panic("transactor cannot be nil")
	}
	if accountant == nil {
		panic("accountant cannot be nil")
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.PausedIdleTimeout <= 0 {
		cfg.PausedIdleTimeout = 24 * time.Hour
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 100
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tx:         tx,
		accountant: accountant,
		emitter:    emitter,
		cfg:        cfg,
		now:        clock,
		logger:     logger.With(slog.String("component", "session_service")),
	}
}

// Start opens a new ACTIVE session. It fails with ErrSessionAlreadyActive
// while the user has an ACTIVE or PAUSED session.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, sessionType domain.SessionType) (_ *domain.SessionSummary, err error) {
	ctx, span := tracer.Start(ctx, "session.Start")
	defer func() { tracing.RecordError(span, err); span.End() }()

	sess, err := domain.NewSession(userID, sessionType, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		// The account lock serializes concurrent starts for the user.
		if _, err := st.Accounts.GetOrCreateForUpdate(ctx, userID, s.accountant.DefaultDailyGoal()); err != nil {
			return err
		}
		open, err := st.Sessions.GetOpenForUpdate(ctx, userID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: session %s is %s", domain.ErrSessionAlreadyActive, open.ID, open.Status)
		case !errors.Is(err, store.ErrSessionNotFound):
			return err
		}
		if err := st.Sessions.Create(ctx, sess); err != nil {
			if errors.Is(err, store.ErrActiveSessionExists) {
				return domain.ErrSessionAlreadyActive
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("session started",
		slog.String("user_id", userID.String()),
		slog.String("session_id", sess.ID.String()),
		slog.String("session_type", string(sessionType)))
	return sess, nil
}

// End completes the session, records the day as active for the streak and
// credits the session's points multiplied by the streak multiplier. The
// stored session carries the multiplied points. Ending twice fails with
// ErrInvalidState.
func (s *Service) End(ctx context.Context, userID, sessionID uuid.UUID) (_ *EndResult, err error) {
	ctx, span := tracer.Start(ctx, "session.End")
	defer func() { tracing.RecordError(span, err); span.End() }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}

	var box service.Outbox
	var result EndResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		box.Reset()
		now := s.now()

		account, err := st.Accounts.GetOrCreateForUpdate(ctx, userID, s.accountant.DefaultDailyGoal())
		if err != nil {
			return err
		}
		sess, err := s.load(ctx, st, userID, sessionID)
		if err != nil {
			return err
		}
		ended, err := sess.End(now)
		if err != nil {
			return err
		}

		outcome, err := s.accountant.RecordActivity(ctx, st, &box, userID, s.accountant.Day(now), now)
		if err != nil {
			return err
		}
		grant, err := s.accountant.Credit(ctx, st, &box, account, ended.PointsEarned,
			outcome.State.CurrentStreak, events.SourceSession, ended.ID, now)
		if err != nil {
			return err
		}
		ended.PointsEarned = grant.Points

		if err := st.Sessions.Update(ctx, &ended); err != nil {
			return err
		}
		result = EndResult{Session: ended, Streak: outcome.State, Grant: grant}
		return nil
	})
	if err != nil {
		return nil, err
	}

	box.Flush(ctx, s.emitter, log)
	log.Info("session completed",
		slog.String("user_id", userID.String()),
		slog.String("session_id", sessionID.String()),
		slog.Int("questions", result.Session.QuestionsAnswered),
		slog.Float64("accuracy", result.Session.AccuracyRate),
		slog.Int("points", result.Grant.Points),
		slog.Int("streak", result.Streak.CurrentStreak))
	return &result, nil
}

// Pause suspends an ACTIVE session.
func (s *Service) Pause(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	return s.transition(ctx, "session.Pause", userID, sessionID, domain.SessionSummary.Pause)
}

// Resume reactivates a PAUSED session.
func (s *Service) Resume(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	return s.transition(ctx, "session.Resume", userID, sessionID, domain.SessionSummary.Resume)
}

// Abandon ends a session without any reward or streak effect.
func (s *Service) Abandon(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	return s.transition(ctx, "session.Abandon", userID, sessionID, domain.SessionSummary.Abandon)
}

func (s *Service) transition(
	ctx context.Context,
	op string,
	userID, sessionID uuid.UUID,
	apply func(domain.SessionSummary, time.Time) (domain.SessionSummary, error),
) (_ *domain.SessionSummary, err error) {
	ctx, span := tracer.Start(ctx, op)
	defer func() { tracing.RecordError(span, err); span.End() }()

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}

	var updated domain.SessionSummary
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		sess, err := s.load(ctx, st, userID, sessionID)
		if err != nil {
			return err
		}
		if updated, err = apply(*sess, s.now()); err != nil {
			return err
		}
		return st.Sessions.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("session transition",
		slog.String("operation", op),
		slog.String("session_id", sessionID.String()),
		slog.String("status", string(updated.Status)))
	return &updated, nil
}

// load locks the session and hides sessions owned by someone else.
func (s *Service) load(ctx context.Context, st store.Stores, userID, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	sess, err := st.Sessions.GetForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, store.ErrSessionNotFound
	}
	return sess, nil
}

// Get returns one of the user's sessions.
func (s *Service) Get(ctx context.Context, userID, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	var sess *domain.SessionSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		got, err := st.Sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if got.UserID != userID {
			return store.ErrSessionNotFound
		}
		sess = got
		return nil
	})
	if err != nil {
		return nil, service.NewServiceError("session.Get", "failed to load session", err)
	}
	return sess, nil
}

// GetActive returns the user's ACTIVE or PAUSED session.
// Returns store.ErrSessionNotFound when there is none.
func (s *Service) GetActive(ctx context.Context, userID uuid.UUID) (*domain.SessionSummary, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	var sess *domain.SessionSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		sess, err = st.Sessions.GetOpenForUpdate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("session.GetActive", "failed to load active session", err)
	}
	return sess, nil
}

// SweepIdle abandons open sessions past their idle allowance and returns how
// many it abandoned. Each session is abandoned in its own
// unit of work; one failure does not stop the sweep.
func (s *Service) SweepIdle(ctx context.Context, now time.Time) (_ int, err error) {
	ctx, span := tracer.Start(ctx, "session.SweepIdle")
	defer func() { tracing.RecordError(span, err); span.End() }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	activeCutoff, pausedCutoff := s.idlePolicy().Cutoffs(now)
	var ids []uuid.UUID
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		ids, err = st.Sessions.ListIdle(ctx, activeCutoff, pausedCutoff, s.cfg.SweepBatchSize)
		return err
	})
	if err != nil {
		return 0, service.NewServiceError("session.SweepIdle", "failed to list idle sessions", err)
	}

	abandoned := 0
	var errs []error
	for _, id := range ids {
		done, err := s.abandonIfIdle(ctx, id, now)
		if err != nil {
			log.Warn("failed to abandon idle session",
				slog.String("session_id", id.String()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if done {
			abandoned++
		}
	}

	if abandoned > 0 {
		log.Info("abandoned idle sessions",
			slog.Int("count", abandoned),
			slog.Time("active_cutoff", activeCutoff),
			slog.Time("paused_cutoff", pausedCutoff))
	}
	return abandoned, errors.Join(errs...)
}

func (s *Service) abandonIfIdle(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	abandoned := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		sess, err := st.Sessions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Activity may have arrived since the listing.
		if !sess.IsIdle(now, s.idlePolicy()) {
			return nil
		}
		updated, err := sess.Abandon(now)
		if err != nil {
			return err
		}
		if err := st.Sessions.Update(ctx, &updated); err != nil {
			return err
		}
		abandoned = true
		return nil
	})
	return abandoned, err
}

func (s *Service) idlePolicy() domain.IdlePolicy {
	return domain.IdlePolicy{Active: s.cfg.IdleTimeout, Paused: s.cfg.PausedIdleTimeout}
}
