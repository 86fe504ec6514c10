package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/wantnot/internal/cli"
	"github.com/Veraticus/wantnot/internal/config"
	"github.com/Veraticus/wantnot/internal/storage"
	"github.com/Veraticus/wantnot/internal/storage/pgcorpus"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

When the corpus lives in PostgreSQL its schema is migrated as well.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	slog.Info("Starting database migration", "database", cfg.Database.Path, "status_only", status)

	if err := config.EnsureParentDir(cfg.Database.Path); err != nil {
		return err
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if !status {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Database schema at version %d", version)))

	if cfg.Corpus.Driver != config.CorpusDriverPostgres || status {
		return nil
	}

	corpus, err := pgcorpus.Open(ctx, cfg.Corpus.PostgresDSN, cfg.Corpus.Dimensions)
	if err != nil {
		return err
	}
	defer func() { _ = corpus.Close() }()

	if err := corpus.Migrate(ctx); err != nil {
		return fmt.Errorf("corpus migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("PostgreSQL corpus schema is up to date"))
	return nil
}
