package sqlite

import (
	"context"
	"embed"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := database.Migrate(ctx, s.db, migrationsFS, "migrations", database.SQLiteDialect)
	return err
}

// MigrationsApplied returns the list of applied migrations
func (s *Store) MigrationsApplied(ctx context.Context) ([]string, error) {
	return database.AppliedMigrations(ctx, s.db)
}
