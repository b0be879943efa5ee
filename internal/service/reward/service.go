// Package reward implements streak accounting, daily check-ins with makeups,
// and the point rewards attached to them.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/domain/streak"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/platform/tracing"
	"github.com/phrazzld/lexis-api/internal/service"
	"github.com/phrazzld/lexis-api/internal/store"
)

var tracer = tracing.Tracer("service/reward")

// CheckInRequest describes one check-in submission.
type CheckInRequest struct {
	// Date is the calendar day being checked in. Zero means today.
	Date     time.Time
	IsMakeup bool
}

// CheckInResult is the committed outcome of a check-in.
type CheckInResult struct {
	Record  domain.CheckInRecord
	Streak  domain.StreakState
	Account domain.LearnerAccount
	Grant   Grant
}

// StreakSummary is a user's streak with the multiplier it currently earns.
type StreakSummary struct {
	domain.StreakState
	Multiplier float64 `json:"multiplier"`
}

// Service is the streak and reward accountant.
type Service struct {
	tx         store.Transactor
	accountant *Accountant
	emitter    events.EventEmitter
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a reward Service. emitter may be nil.
func NewService(
	tx store.Transactor,
	accountant *Accountant,
	emitter events.EventEmitter,
	clock func() time.Time,
	logger *slog.Logger,
) *Service {
	if tx == nil {
		panic("transactor cannot be nil")
	}
	if accountant == nil {
		panic("accountant cannot be nil")
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
		now:        clock,
		logger:     logger.With(slog.String("component", "reward_service")),
	}
}

// CheckIn records a check-in for userID against the activity checkInID.
//
// A regular check-in must be for today and must satisfy the activity's rules
// against the sessions the user completed today. A makeup must be for a past day
// within the activity's makeup window and costs the activity's makeup cost
// for every day it reaches back; the cost is debited before the reward is
// credited and an insufficient balance fails without any change.
func (s *Service) CheckIn(
	ctx context.Context,
	userID, checkInID uuid.UUID,
	req CheckInRequest,
) (_ *CheckInResult, err error) {
	ctx, span := tracer.Start(ctx, "reward.CheckIn")
	defer func() { tracing.RecordError(span, err); span.End() }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}

	now := s.now()
	today := s.accountant.Day(now)
	day := today
	if !req.Date.IsZero() {
		day = domain.CalendarDay(req.Date, time.UTC)
	}
	if !req.IsMakeup && !day.Equal(today) {
		return nil, fmt.Errorf("%w: regular check-in must be for %s", domain.ErrInvalidDate, today.Format(time.DateOnly))
	}

	var box service.Outbox
	var result CheckInResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		box.Reset()

		activity, err := st.CheckIns.GetActivity(ctx, checkInID)
		if err != nil {
			return err
		}
		if activity.Status != domain.ActivityStatusActive {
			return fmt.Errorf("%w: status %s", domain.ErrActivityNotActive, activity.Status)
		}
		if !activity.Covers(day) {
			return domain.ErrOutsideActivityDates
		}

		daysBack := 0
		if req.IsMakeup {
			if daysBack, err = activity.CheckMakeup(day, today); err != nil {
				return err
			}
		} else if !activity.Rules.IsZero() {
			if err := s.checkRules(ctx, st, activity.Rules, userID, day); err != nil {
				return err
			}
		}

		account, err := st.Accounts.GetOrCreateForUpdate(ctx, userID, s.accountant.DefaultDailyGoal())
		if err != nil {
			return err
		}

		_, err = st.CheckIns.FindRecord(ctx, userID, checkInID, day)
		switch {
		case err == nil:
			return domain.ErrAlreadyCheckedIn
		case !errors.Is(err, store.ErrCheckInRecordNotFound):
			return err
		}

		cost := 0
		if req.IsMakeup {
			cost = streak.MakeupCost(activity.MakeupCost, daysBack)
			if err := account.Debit(cost, now); err != nil {
				return err
			}
			if err := st.Accounts.Update(ctx, account); err != nil {
				return err
			}
		}

		outcome, err := s.accountant.RecordActivity(ctx, st, &box, userID, day, now)
		if err != nil {
			return err
		}

		record := domain.CheckInRecord{
			ID:         uuid.New(),
			UserID:     userID,
			CheckInID:  checkInID,
			Date:       day,
			Status:     domain.CheckInStatusCompleted,
			Type:       domain.CheckInTypeNormal,
			IsMakeup:   req.IsMakeup,
			MakeupCost: cost,
			StreakDays: outcome.State.CurrentStreak,
			CreatedAt:  now,
		}
		if req.IsMakeup {
			record.Type = domain.CheckInTypeMakeup
		}

		grant, err := s.accountant.Credit(ctx, st, &box, account, activity.BasePoints,
			outcome.State.CurrentStreak, events.SourceCheckIn, record.ID, now)
		if err != nil {
			return err
		}
		record.PointsEarned = grant.Points

		if err := st.CheckIns.CreateRecord(ctx, &record); err != nil {
			if errors.Is(err, store.ErrCheckInRecordExists) {
				return domain.ErrAlreadyCheckedIn
			}
			return err
		}

		result = CheckInResult{Record: record, Streak: outcome.State, Account: *account, Grant: grant}
		return nil
	})
	if err != nil {
		log.Warn("check-in rejected",
			slog.String("user_id", userID.String()),
			slog.String("check_in_id", checkInID.String()),
			slog.String("date", day.Format(time.DateOnly)),
			slog.Bool("makeup", req.IsMakeup),
			slog.String("error", err.Error()))
		return nil, err
	}

	box.Flush(ctx, s.emitter, log)
	log.Info("check-in recorded",
		slog.String("user_id", userID.String()),
		slog.String("check_in_id", checkInID.String()),
		slog.Int("points", result.Grant.Points),
		slog.Int("makeup_cost", result.Record.MakeupCost),
		slog.Int("streak", result.Streak.CurrentStreak))
	return &result, nil
}

// RecordDailyActivity marks date as an active day for userID. Recording the
// same day twice is a no-op. A day before the last activity date is merged
// into the activity history and the streak is recomputed from it.
func (s *Service) RecordDailyActivity(ctx context.Context, userID uuid.UUID, date time.Time) (_ *domain.StreakState, err error) {
	ctx, span := tracer.Start(ctx, "reward.RecordDailyActivity")
	defer func() { tracing.RecordError(span, err); span.End() }()

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	now := s.now()
	day := domain.CalendarDay(date, time.UTC)
	if date.IsZero() {
		day = s.accountant.Day(now)
	}
	if day.After(s.accountant.Day(now)) {
		return nil, fmt.Errorf("%w: activity date in the future", domain.ErrInvalidDate)
	}

	var box service.Outbox
	var state domain.StreakState
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		box.Reset()
		out, err := s.accountant.RecordActivity(ctx, st, &box, userID, day, now)
		if err != nil {
			return err
		}
		state = out.State
		return nil
	})
	if err != nil {
		return nil, service.NewServiceError("reward.RecordDailyActivity", "failed to record activity", err)
	}
	box.Flush(ctx, s.emitter, logger.FromContextOrDefault(ctx, s.logger))
	return &state, nil
}

// GetStreak returns the user's streak and current multiplier as of today. A
// streak whose last day is before yesterday is reported as 0 with the base
// multiplier; MaxStreak and LastActivityDate are reported as stored.
func (s *Service) GetStreak(ctx context.Context, userID uuid.UUID) (*StreakSummary, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	var summary StreakSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		state, err := st.Streaks.Get(ctx, userID)
		if err != nil {
			return err
		}
		summary = StreakSummary{StreakState: *state}
		summary.CurrentStreak = streak.Current(*state, s.accountant.Day(s.now()))
		summary.Multiplier = s.accountant.Multipliers().For(summary.CurrentStreak)
		return nil
	})
	if err != nil {
		return nil, service.NewServiceError("reward.GetStreak", "failed to load streak", err)
	}
	return &summary, nil
}

// GetAccount returns the user's account. A user without one sees a fresh
// account with the default daily goal; nothing is persisted.
func (s *Service) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.LearnerAccount, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	var account *domain.LearnerAccount
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		a, err := st.Accounts.Get(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			account = domain.NewLearnerAccount(userID, s.accountant.DefaultDailyGoal(), s.now())
			return nil
		}
		account = a
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("reward.GetAccount", "failed to load account", err)
	}
	return account, nil
}

// ListCheckIns returns the user's check-in records between from and to, inclusive.
func (s *Service) ListCheckIns(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.CheckInRecord, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}
	from, to = domain.CalendarDay(from, time.UTC), domain.CalendarDay(to, time.UTC)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range ends before it starts", domain.ErrInvalidDate)
	}

	var records []domain.CheckInRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		records, err = st.CheckIns.ListRecords(ctx, userID, from, to)
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("reward.ListCheckIns", "failed to list check-ins", err)
	}
	return records, nil
}

// checkRules evaluates rules against the sessions userID completed on day.
func (s *Service) checkRules(
	ctx context.Context,
	st store.Stores,
	rules domain.CheckInRules,
	userID uuid.UUID,
	day time.Time,
) error {
	from, to := s.accountant.Span(day)
	sessions, err := st.Sessions.ListCompleted(ctx, userID, from, to)
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}
	seconds := 0
	for _, sess := range sessions {
		seconds += sess.DurationSeconds
	}
	return rules.Check(len(sessions), seconds)
}

// CreateActivity stores a new check-in activity as a draft. It accepts
// check-ins only after TransitionActivity publishes it.
func (s *Service) CreateActivity(ctx context.Context, a *domain.CheckInActivity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Title == "" {
		return fmt.Errorf("%w: activity title is required", domain.ErrValidation)
	}
	if a.BasePoints < 0 || a.MakeupCost < 0 || a.MaxMakeupDays < 0 {
		return fmt.Errorf("%w: activity points and limits cannot be negative", domain.ErrValidation)
	}
	if a.Rules.MinStudyMinutes < 0 || a.Rules.RequiredSessions < 0 {
		return fmt.Errorf("%w: activity rules cannot be negative", domain.ErrValidation)
	}
	a.StartDate = domain.CalendarDay(a.StartDate, time.UTC)
	if a.EndDate != nil {
		end := domain.CalendarDay(*a.EndDate, time.UTC)
		if end.Before(a.StartDate) {
			return fmt.Errorf("%w: activity ends before it starts", domain.ErrInvalidDate)
		}
		a.EndDate = &end
	}
	a.Status = domain.ActivityStatusDraft
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	return s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		return st.CheckIns.CreateActivity(ctx, a)
	})
}

// TransitionActivity moves an activity through its lifecycle: publishing a
// draft and resuming a paused activity both move it to ACTIVE.
func (s *Service) TransitionActivity(
	ctx context.Context,
	id uuid.UUID,
	to domain.ActivityStatus,
) (*domain.CheckInActivity, error) {
	var activity *domain.CheckInActivity
	var from domain.ActivityStatus
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		a, err := st.CheckIns.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		from = a.Status
		if err := a.TransitionTo(to, s.now()); err != nil {
			return err
		}
		if err := st.CheckIns.UpdateActivity(ctx, a); err != nil {
			return err
		}
		activity = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("check-in activity transitioned",
		slog.String("activity_id", id.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return activity, nil
}
