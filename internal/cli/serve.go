package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ledger-service/internal/repository"
	"ledger-service/internal/server"
)

type serveOptions struct {
	migrate         bool
	shutdownTimeout time.Duration
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 30*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *serveOptions) error {
	cfg, logger := rootOpts.Config, rootOpts.Logger

	if opts.migrate {
		if err := migrateDatabase(ctx, rootOpts); err != nil {
			return err
		}
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	port, err := srv.Start(cfg.ServerPort)
	if err != nil {
		srv.Stop(context.Background())
		return fmt.Errorf("failed to listen: %w", err)
	}
	logger.Info("Server started successfully", "port", port)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func migrateDatabase(ctx context.Context, rootOpts *RootOptions) error {
	cfg, logger := rootOpts.Config, rootOpts.Logger

	db, err := repository.Open(ctx, cfg.GetDBConnectionString(), repository.PoolSettings{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := repository.Migrate(ctx, db, logger)
	if err != nil {
		return err
	}
	logger.Info("Migrations complete", "applied", applied, "target", cfg.RedactedDBTarget())
	return nil
}
