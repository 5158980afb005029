package postgres

import (
	"context"
	"embed"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date, including the vector extension.
func (p *Pool) Migrate(ctx context.Context) error {
	_, err := database.Migrate(ctx, p.db, migrationsFS, "migrations", database.PostgresDialect)
	return err
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return database.AppliedMigrations(ctx, p.db)
}
