package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/visit-desk/internal/config"
	"github.com/evcraddock/visit-desk/internal/db"
	"github.com/evcraddock/visit-desk/internal/logging"
	"github.com/evcraddock/visit-desk/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the visit-desk REST API. Settings come from VD_* environment variables, optionally loaded from an env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides VD_PORT)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file to load before reading VD_* variables")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Setup(cfg.IsDev())

	path, err := serveDBPath(cfg)
	if err != nil {
		return err
	}
	database, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeDB(database)

	srv := web.NewServer(database, web.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
		Location:           time.Local,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("visit-desk api", "db", path, "env", cfg.Env, "addr", cfg.Addr())
	return srv.ListenAndServe(ctx, cfg.Addr())
}

// serveDBPath picks the database: --db, then VD_DB_PATH, then the default.
func serveDBPath(cfg *config.Config) (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return db.DefaultPath()
}
