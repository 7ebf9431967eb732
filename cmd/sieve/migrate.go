package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/ledger-sieve/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the run history schema to the latest version.

serve and predict migrate on startup, so this is only needed to
prepare a database ahead of time or to check its version.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		slog.Info("📊 Database migration status",
			"database", cfg.Database.Path,
			"current", current,
			"latest", storage.ExpectedSchemaVersion)
		return nil
	}

	slog.Info("🗄️  Running database migrations...", "database", cfg.Database.Path, "from", current)

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("✅ Database migrations completed successfully!", "version", storage.ExpectedSchemaVersion)

	return nil
}
