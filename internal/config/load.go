package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	_ "time/tzdata" // embedded zoneinfo for streak.timezone

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "LEXIS"

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is loaded first when present.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Database.Backend == "postgres" && cfg.Database.URL == "" {
		return fmt.Errorf("config validation failed: database.url is required for the postgres backend")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.backend", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.lock_timeout", "2s")

	v.SetDefault("srs.min_ease_factor", 1.3)
	v.SetDefault("srs.max_ease_factor", 0)
	v.SetDefault("srs.correct_grade", 4)
	v.SetDefault("srs.lapse_penalty", 0.2)
	v.SetDefault("srs.first_interval_days", 1)
	v.SetDefault("srs.second_interval_days", 6)
	v.SetDefault("srs.max_interval_days", 365)
	v.SetDefault("srs.thresholds", []map[string]any{
		{"level": "LEARNING", "min_repetitions": 1, "min_interval_days": 1},
		{"level": "FAMILIAR", "min_repetitions": 2, "min_interval_days": 1},
		{"level": "MASTERED", "min_repetitions": 3, "min_interval_days": 21},
		{"level": "EXPERT", "min_repetitions": 5, "min_interval_days": 42},
	})

	v.SetDefault("rewards.points_per_correct", 1)
	v.SetDefault("rewards.default_daily_goal", 10)
	v.SetDefault("rewards.streak_tiers", []map[string]any{
		{"min_days": 0, "multiplier": 1.0},
		{"min_days": 7, "multiplier": 1.2},
		{"min_days": 30, "multiplier": 1.5},
	})

	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.paused_idle_timeout", "24h")
	v.SetDefault("session.sweep_interval", "5m")
	v.SetDefault("session.sweep_batch_size", 100)

	v.SetDefault("streak.timezone", "UTC")

	v.SetDefault("scheduler.default_limit", 20)
	v.SetDefault("scheduler.max_limit", 100)
	v.SetDefault("scheduler.backfill", true)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "50ms")
	v.SetDefault("retry.max_delay", "1s")
	v.SetDefault("retry.op_timeout", "10s")

	v.SetDefault("notify.redis_addr", "")
	v.SetDefault("notify.channel", "lexis.events")
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.queue_size", 256)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "lexis-api")
}
