// linkctl is the operator CLI: schema migration, dev tokens, link creation
// and click statistics against the configured Postgres store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shortlinks/internal/config"
	"shortlinks/internal/repository/postgres"
	"shortlinks/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// cfg is loaded once by the root command before any subcommand runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "linkctl",
	Short:         "Operator tool for the link shortener",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openPool connects to Postgres; the CLI has no use for the memory store
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Store.Driver != config.DriverPostgres {
		return nil, errors.New("linkctl needs STORE_DRIVER=postgres")
	}
	return postgres.InitDB(ctx, cfg.Database.DatabaseDSN(), 2, 0, cfg.Database.ConnMaxLifetime)
}

// cliLogger writes to stderr so stdout stays machine-readable
func cliLogger() *logger.Logger {
	return logger.New(cfg.App.LogLevel, logger.WithOutput(os.Stderr)).
		WithFields(map[string]any{"component": "linkctl"})
}
