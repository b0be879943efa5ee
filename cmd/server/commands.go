package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/lexis-api/internal/config"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/platform/postgres"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lexis-api",
		Short:         "Spaced repetition scheduler and streak accounting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override server.log_level")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	return cmd
}

// loadConfig loads configuration and sets up logging, applying flag overrides.
func loadConfig(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Server.LogLevel = opts.logLevel
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("backend", cfg.Database.Backend))
	return cfg, log, nil
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the idle-session sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			if seedFile != "" {
				if err := app.seedCatalog(seedFile); err != nil {
					app.cleanup()
					return err
				}
			}
			return app.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed-items", "",
		"JSON file of catalog items to load (memory backend only)")
	return cmd
}

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|reset]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.Database.Backend != backendPostgres {
				return fmt.Errorf("migrations require the postgres backend, got %q", cfg.Database.Backend)
			}

			db, err := setupAppDatabase(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
}

func newSweepCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Abandon idle sessions once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			app, err := newApplication(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Session.SweepInterval)
			defer cancel()

			n, err := app.sessionService.SweepIdle(ctx, time.Now().UTC())
			log.Info("idle session sweep finished", slog.Int("abandoned", n))
			fmt.Fprintf(cmd.OutOrStdout(), "abandoned %d idle sessions\n", n)
			return err
		},
	}
}
