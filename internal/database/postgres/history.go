package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

const historyColumns = "id, name, image, timestamp"

func scanHistory(scanner interface{ Scan(...any) error }) (database.HistoryEntry, error) {
	var e database.HistoryEntry
	if err := scanner.Scan(&e.ID, &e.Name, &e.Image, &e.Timestamp); err != nil {
		return e, err //nolint:wrapcheck // callers wrap
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}

// AddHistory records a detection.
func (p *Pool) AddHistory(ctx context.Context, name, image string) (*database.HistoryEntry, error) {
	e, err := scanHistory(p.db.QueryRowContext(ctx,
		"INSERT INTO history (name, image, timestamp) VALUES ($1, $2, date_trunc('second', NOW())) RETURNING "+historyColumns,
		name, image,
	))
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return &e, nil
}

// ListHistory returns filtered history entries, newest first.
// Date bounds are interpreted in UTC, the same as the SQLite backend.
func (p *Pool) ListHistory(ctx context.Context, filter database.HistoryFilter) ([]database.HistoryEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		clauses = append(clauses, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.From != "" {
		args = append(args, filter.From+" 00:00:00")
		clauses = append(clauses, fmt.Sprintf("timestamp >= ($%d::timestamp AT TIME ZONE 'UTC')", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To+" 23:59:59")
		clauses = append(clauses, fmt.Sprintf("timestamp <= ($%d::timestamp AT TIME ZONE 'UTC')", len(args)))
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = database.DefaultHistoryLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf("SELECT %s FROM history %s ORDER BY timestamp DESC, id DESC LIMIT $%d",
		historyColumns, where, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []database.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// GetHistory returns a single entry.
func (p *Pool) GetHistory(ctx context.Context, id int64) (*database.HistoryEntry, error) {
	e, err := scanHistory(p.db.QueryRowContext(ctx, "SELECT "+historyColumns+" FROM history WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return &e, nil
}

// ClearHistory removes every entry.
func (p *Pool) ClearHistory(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// PruneHistory deletes entries older than before.
func (p *Pool) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	result, err := p.db.ExecContext(ctx, "DELETE FROM history WHERE timestamp < $1", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
