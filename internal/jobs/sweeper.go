// Package jobs runs the periodic background work of the server.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// IdleSweeper abandons sessions that have been idle for too long.
type IdleSweeper interface {
	SweepIdle(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs the idle-session sweep on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   IdleSweeper
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Scheduler. Each sweep is bounded by timeout; a zero timeout
// means the interval.
func New(sweeper IdleSweeper, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if sweeper == nil {
		panic("sweeper cannot be nil")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = interval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// A slow sweep must not overlap the next run.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		interval:  interval,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With(slog.String("component", "jobs")),
	}
}

// Start schedules the sweep and returns without blocking.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.sweep); err != nil {
		return fmt.Errorf("failed to schedule idle session sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.logger.Info("idle session sweep scheduled", slog.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler. A sweep in progress runs to completion.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweeper.SweepIdle(ctx, s.now())
	if err != nil {
		s.logger.Error("idle session sweep failed",
			slog.String("error", err.Error()),
			slog.Int("abandoned", n))
		return
	}
	s.logger.Debug("idle session sweep finished",
		slog.Int("abandoned", n),
		slog.Duration("took", time.Since(start)))
}
