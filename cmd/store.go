package cmd

import (
	"context"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/database/postgres"
	"github.com/rehanbawakhan/vdetection/internal/database/sqlite"
)

// openStore connects the configured backend, applies migrations and registers it.
// DATABASE_URL selects PostgreSQL, otherwise DATABASE_PATH is opened with SQLite.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	if cfg.Database.UsePostgres() {
		pool, err := postgres.Initialize(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return pool, nil
	}

	store, err := sqlite.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite database %s: %w", cfg.Database.Path, err)
	}
	return store, nil
}
