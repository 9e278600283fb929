package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ledger-service/internal/config"
	"ledger-service/internal/server"
)

// RootOptions holds global flags and the configuration they resolve to.
type RootOptions struct {
	EnvDir string

	Config *config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the root command. Running it without a subcommand
// starts the HTTP server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	serve := NewServeCommand(opts)

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Transaction ledger query service",
		Long:  "Serves transaction and account CRUD plus summary, nested and paged projections over PostgreSQL.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.EnvDir)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			opts.Config = cfg
			opts.Logger = server.NewLogger(cfg)
			slog.SetDefault(opts.Logger)
			return nil
		},
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvDir, "env-dir", ".", "directory holding an optional .env file")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDashboardCommand(opts))

	return cmd
}
