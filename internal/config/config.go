package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	SRS       SRSConfig       `mapstructure:"srs" validate:"required"`
	Rewards   RewardsConfig   `mapstructure:"rewards" validate:"required"`
	Session   SessionConfig   `mapstructure:"session" validate:"required"`
	Streak    StreakConfig    `mapstructure:"streak" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Retry     RetryConfig     `mapstructure:"retry" validate:"required"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Backend selects the store: "postgres" or the in-process "memory" store.
	// URL is required for postgres.
	Backend         string        `mapstructure:"backend" validate:"required,oneof=postgres memory"`
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	// LockTimeout bounds how long a transaction waits for a row lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout" validate:"gt=0"`
}

// SRSConfig holds the interval engine parameters.
type SRSConfig struct {
	MinEaseFactor      float64           `mapstructure:"min_ease_factor" validate:"gte=1.3"`
	MaxEaseFactor      float64           `mapstructure:"max_ease_factor" validate:"gte=0"`
	CorrectGrade       int               `mapstructure:"correct_grade" validate:"gte=3,lte=5"`
	LapsePenalty       float64           `mapstructure:"lapse_penalty" validate:"gte=0"`
	FirstIntervalDays  int               `mapstructure:"first_interval_days" validate:"gte=1"`
	SecondIntervalDays int               `mapstructure:"second_interval_days" validate:"gtefield=FirstIntervalDays"`
	MaxIntervalDays    int               `mapstructure:"max_interval_days" validate:"gte=0"`
	Thresholds         []ThresholdConfig `mapstructure:"thresholds" validate:"dive"`
}

// ThresholdConfig is the promotion requirement for one mastery level.
type ThresholdConfig struct {
	Level           string `mapstructure:"level" validate:"required,oneof=LEARNING FAMILIAR MASTERED EXPERT"`
	MinRepetitions  int    `mapstructure:"min_repetitions" validate:"gte=0"`
	MinIntervalDays int    `mapstructure:"min_interval_days" validate:"gte=0"`
}

// RewardsConfig holds point and multiplier settings.
type RewardsConfig struct {
	PointsPerCorrect int          `mapstructure:"points_per_correct" validate:"gte=0"`
	DefaultDailyGoal int          `mapstructure:"default_daily_goal" validate:"gt=0"`
	StreakTiers      []TierConfig `mapstructure:"streak_tiers" validate:"dive"`
}

// TierConfig is one step of the streak multiplier function.
type TierConfig struct {
	MinDays    int     `mapstructure:"min_days" validate:"gte=0"`
	Multiplier float64 `mapstructure:"multiplier" validate:"gt=0"`
}

// SessionConfig controls the idle-session sweep.
type SessionConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	PausedIdleTimeout time.Duration `mapstructure:"paused_idle_timeout" validate:"gt=0"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	SweepBatchSize    int           `mapstructure:"sweep_batch_size" validate:"gt=0"`
}

// StreakConfig controls calendar-day boundaries.
type StreakConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required,timezone"`
}

// SchedulerConfig controls due-queue size and backfill.
type SchedulerConfig struct {
	DefaultLimit int  `mapstructure:"default_limit" validate:"gt=0"`
	MaxLimit     int  `mapstructure:"max_limit" validate:"gtefield=DefaultLimit"`
	Backfill     bool `mapstructure:"backfill"`
}

// RetryConfig bounds store operations.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	OpTimeout   time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
}

// NotifyConfig configures outbound event delivery. Without a Redis address
// events are only logged.
type NotifyConfig struct {
	RedisAddr string `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	Channel   string `mapstructure:"channel" validate:"required_with=RedisAddr"`
	Workers   int    `mapstructure:"workers" validate:"gte=1"`
	QueueSize int    `mapstructure:"queue_size" validate:"gte=1"`
}

// TracingConfig enables OpenTelemetry spans written to stdout.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name" validate:"required_if=Enabled true"`
}
