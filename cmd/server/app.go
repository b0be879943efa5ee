package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/lexis-api/internal/config"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/domain/srs"
	"github.com/phrazzld/lexis-api/internal/domain/streak"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/jobs"
	"github.com/phrazzld/lexis-api/internal/platform/memory"
	"github.com/phrazzld/lexis-api/internal/platform/postgres"
	"github.com/phrazzld/lexis-api/internal/platform/redis"
	"github.com/phrazzld/lexis-api/internal/platform/tracing"
	"github.com/phrazzld/lexis-api/internal/service/challenge"
	"github.com/phrazzld/lexis-api/internal/service/review"
	"github.com/phrazzld/lexis-api/internal/service/reward"
	"github.com/phrazzld/lexis-api/internal/service/session"
	"github.com/phrazzld/lexis-api/internal/store"
	"github.com/phrazzld/lexis-api/internal/task"
)

const (
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Exactly one of db and memStore is set.
	db       *sql.DB
	memStore *memory.Store

	transactor store.Transactor
	engine     srs.Service
	accountant *reward.Accountant

	reviewService    *review.Service
	sessionService   *session.Service
	rewardService    *reward.Service
	challengeService *challenge.Service

	eventEmitter *events.InMemoryEventEmitter
	taskQueue    *task.TaskQueue
	workerPool   *task.WorkerPool
	redisClient  *goredis.Client

	sweeper         *jobs.Scheduler
	shutdownTracing tracing.ShutdownFunc

	clock func() time.Time
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	app.shutdownTracing, err = tracing.Setup(ctx, cfg.Tracing, nil, logger)
	if err != nil {
		return nil, err
	}

	params, err := engineParams(cfg.SRS)
	if err != nil {
		return nil, err
	}
	app.engine = srs.NewServiceWithParams(params)

	multipliers, err := streakMultipliers(cfg.Rewards)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Streak.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak timezone %q: %w", cfg.Streak.Timezone, err)
	}
	app.accountant = reward.NewAccountant(multipliers, loc, cfg.Rewards.DefaultDailyGoal)

	base, err := app.setupStore(ctx)
	if err != nil {
		return nil, err
	}
	app.transactor = store.NewRetryingTransactor(base, store.RetryPolicy{
		MaxAttempts: uint64(cfg.Retry.MaxAttempts),
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		OpTimeout:   cfg.Retry.OpTimeout,
	}, logger)

	if err := app.setupEvents(ctx); err != nil {
		return nil, err
	}

	app.rewardService = reward.NewService(app.transactor, app.accountant, app.eventEmitter, app.clock, logger)
	app.challengeService = challenge.NewService(app.transactor, app.accountant, app.eventEmitter, app.clock, logger)
	app.reviewService = review.NewService(app.transactor, app.engine, app.eventEmitter, review.Config{
		PointsPerCorrect: cfg.Rewards.PointsPerCorrect,
		DefaultLimit:     cfg.Scheduler.DefaultLimit,
		MaxLimit:         cfg.Scheduler.MaxLimit,
		Backfill:         cfg.Scheduler.Backfill,
		DefaultDailyGoal: cfg.Rewards.DefaultDailyGoal,
		Location:         loc,
	}, app.clock, logger)
	app.sessionService = session.NewService(app.transactor, app.accountant, app.eventEmitter, session.Config{
		IdleTimeout:       cfg.Session.IdleTimeout,
		PausedIdleTimeout: cfg.Session.PausedIdleTimeout,
		SweepBatchSize:    cfg.Session.SweepBatchSize,
	}, app.clock, logger)

	app.sweeper = jobs.New(app.sessionService, cfg.Session.SweepInterval, 0, logger)

	logger.Info("application initialized",
		slog.String("timezone", loc.String()),
		slog.Int("max_interval_days", params.MaxIntervalDays))
	return app, nil
}

// setupStore opens the configured backend and returns its Transactor.
func (app *application) setupStore(ctx context.Context) (store.Transactor, error) {
	switch app.config.Database.Backend {
	case backendMemory:
		app.memStore = memory.NewStore(app.logger)
		app.logger.Warn("using in-memory store; data is lost on exit")
		return app.memStore, nil
	case backendPostgres:
		db, err := setupAppDatabase(ctx, app.config.Database, app.logger)
		if err != nil {
			return nil, err
		}
		app.db = db
		return postgres.NewTransactor(db, app.config.Database.LockTimeout, app.logger), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", app.config.Database.Backend)
	}
}

// setupEvents creates the emitter. Events are always logged; with a Redis
// address they are also published through the worker pool.
func (app *application) setupEvents(ctx context.Context) error {
	app.eventEmitter = events.NewInMemoryEventEmitter(app.logger)
	app.eventEmitter.RegisterHandler(events.NewLogHandler(app.logger))

	notify := app.config.Notify
	if notify.RedisAddr == "" {
		return nil
	}

	publisher, client, err := redis.Connect(ctx, redis.Options{
		Addr:    notify.RedisAddr,
		Channel: notify.Channel,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}
	app.redisClient = client

	app.taskQueue = task.NewTaskQueue(notify.QueueSize, app.logger)
	app.workerPool = task.NewWorkerPool(app.taskQueue, task.WorkerPoolConfig{WorkerCount: notify.Workers}, app.logger)
	app.workerPool.Start()
	app.eventEmitter.RegisterHandler(task.NewAsyncEventHandler(app.taskQueue, app.logger, publisher))

	app.logger.Info("event publishing enabled", slog.String("channel", notify.Channel))
	return nil
}

// engineParams converts the configured thresholds into engine parameters.
func engineParams(cfg config.SRSConfig) (*srs.Params, error) {
	thresholds := make(map[domain.MasteryLevel]srs.Threshold, len(cfg.Thresholds))
	for _, t := range cfg.Thresholds {
		level, err := domain.ParseMasteryLevel(t.Level)
		if err != nil {
			return nil, fmt.Errorf("srs threshold: %w", err)
		}
		thresholds[level] = srs.Threshold{
			MinRepetitions:  t.MinRepetitions,
			MinIntervalDays: t.MinIntervalDays,
		}
	}
	lapsePenalty := cfg.LapsePenalty
	params, err := srs.NewParams(srs.ParamsConfig{
		MinEaseFactor:      cfg.MinEaseFactor,
		MaxEaseFactor:      cfg.MaxEaseFactor,
		CorrectGrade:       cfg.CorrectGrade,
		LapsePenalty:       &lapsePenalty,
		FirstIntervalDays:  cfg.FirstIntervalDays,
		SecondIntervalDays: cfg.SecondIntervalDays,
		MaxIntervalDays:    cfg.MaxIntervalDays,
		Thresholds:         thresholds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build interval engine parameters: %w", err)
	}
	return params, nil
}

func streakMultipliers(cfg config.RewardsConfig) (*streak.Multipliers, error) {
	tiers := make([]streak.Tier, 0, len(cfg.StreakTiers))
	for _, t := range cfg.StreakTiers {
		tiers = append(tiers, streak.Tier{MinDays: t.MinDays, Multiplier: t.Multiplier})
	}
	m, err := streak.NewMultipliers(tiers)
	if err != nil {
		return nil, fmt.Errorf("failed to build streak multipliers: %w", err)
	}
	return m, nil
}

// Run serves HTTP and runs the idle-session sweeper until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.sweeper.Start(); err != nil {
		return err
	}
	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup handles graceful shutdown of application resources. It is safe to
// call on a partially initialized application.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout())
	defer cancel()

	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.taskQueue != nil {
		app.taskQueue.Close()
	}
	if app.workerPool != nil {
		if err := app.workerPool.Stop(ctx); err != nil {
			app.logger.Error("error stopping worker pool", slog.String("error", err.Error()))
		}
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", slog.String("error", err.Error()))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	if app.shutdownTracing != nil {
		if err := app.shutdownTracing(ctx); err != nil {
			app.logger.Error("error flushing traces", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}

func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeout > 0 {
		return app.config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
