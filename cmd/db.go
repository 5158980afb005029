package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/database/sqlite"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Write a consistent copy of the SQLite database",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBBackup,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runDBMigrate,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbBackupCmd, dbMigrateCmd)
}

func runDBBackup(cmd *cobra.Command, args []string) error {
	dest := args[0]
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup target %s already exists", dest)
	}

	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		sq, ok := store.(*sqlite.Store)
		if !ok {
			return errors.New("backup is only supported for the SQLite backend; use pg_dump for PostgreSQL")
		}
		if err := sq.IntegrityCheck(ctx); err != nil {
			return err
		}

		start := time.Now()
		if err := sq.Backup(ctx, dest); err != nil {
			return err
		}
		info, err := os.Stat(dest)
		if err != nil {
			return fmt.Errorf("backup written but not readable: %w", err)
		}
		fmt.Printf("Backed up %s to %s (%d bytes, %s)\n", sq.Path(), dest, info.Size(), formatDuration(time.Since(start)))
		return nil
	})
}

// migrationLister is implemented by both SQL backends.
type migrationLister interface {
	MigrationsApplied(ctx context.Context) ([]string, error)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	// openStore already migrates; this reports what is applied.
	return withStore(func(ctx context.Context, _ *config.Config, store database.Store) error {
		fmt.Printf("Backend: %s\n", store.Backend())
		lister, ok := store.(migrationLister)
		if !ok {
			fmt.Println("Migrations up to date")
			return nil
		}
		applied, err := lister.MigrationsApplied(ctx)
		if err != nil {
			return fmt.Errorf("failed to list migrations: %w", err)
		}
		fmt.Printf("Applied migrations (%d):\n", len(applied))
		for _, name := range applied {
			fmt.Printf("  %s\n", name)
		}
		return nil
	})
}
