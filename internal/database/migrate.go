package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
)

// Dialect holds the SQL that differs between backends for migration bookkeeping.
type Dialect struct {
	// VersionTable creates schema_migrations(version, applied_at) if missing.
	VersionTable string
	// Record inserts one version; its single placeholder takes the file name.
	Record string
}

var (
	SQLiteDialect = Dialect{
		VersionTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		Record: "INSERT INTO schema_migrations (version) VALUES (?)",
	}
	PostgresDialect = Dialect{
		VersionTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		Record: "INSERT INTO schema_migrations (version) VALUES ($1)",
	}
)

// Migrate runs every *.sql file in dir of fsys that schema_migrations does not
// list yet, in file name order, one transaction per file. It returns the
// names it applied.
func Migrate(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, dialect Dialect) ([]string, error) {
	if _, err := db.ExecContext(ctx, dialect.VersionTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	done, err := AppliedMigrations(ctx, db)
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(files)

	var applied []string
	for _, file := range files {
		version := path.Base(file)
		if slices.Contains(done, version) {
			continue
		}
		script, err := fs.ReadFile(fsys, file)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", version, err)
		}
		if err := applyMigration(ctx, db, dialect, version, string(script)); err != nil {
			return applied, err
		}
		applied = append(applied, version)
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, dialect Dialect, version, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, dialect.Record, version); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}

// AppliedMigrations lists recorded migration versions in order.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration versions: %w", err)
	}
	return versions, nil
}
