// Command migrate manages the Postgres schema for documents and analyses.
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate status
//	go run ./cmd/migrate down --to 1
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"legal-backend/internal/shared/config"
	"legal-backend/internal/shared/storage/db"
	"legal-backend/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or inspect database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(ctx context.Context, database *sql.DB) error {
			if err := db.RunMigrations(ctx, database); err != nil {
				return err
			}
			return logVersion(ctx, database)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied state of each migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(ctx context.Context, database *sql.DB) error {
			return db.MigrationStatus(ctx, database)
		}),
	})

	var target int64
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back to the version given by --to",
		Args:  cobra.NoArgs,
		RunE: withDB(func(ctx context.Context, database *sql.DB) error {
			if err := db.MigrateDownTo(ctx, database, target); err != nil {
				return err
			}
			return logVersion(ctx, database)
		}),
	}
	down.Flags().Int64Var(&target, "to", 0, "Target schema version")
	_ = down.MarkFlagRequired("to")
	root.AddCommand(down)

	return root
}

func withDB(fn func(context.Context, *sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load()
		database, err := db.Connect(cmd.Context(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close()
		return fn(cmd.Context(), database)
	}
}

func logVersion(ctx context.Context, database *sql.DB) error {
	version, err := db.MigrationVersion(ctx, database)
	if err != nil {
		return err
	}
	telemetry.Info("migrate.version", map[string]any{"version": version})
	return nil
}
