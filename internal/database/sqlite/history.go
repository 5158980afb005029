package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

func scanHistory(row rowScanner) (*database.HistoryEntry, error) {
	var (
		e  database.HistoryEntry
		ts string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Image, &ts); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	t, err := database.ParseTimestamp(ts)
	if err != nil {
		return nil, fmt.Errorf("history %d timestamp: %w", e.ID, err)
	}
	e.Timestamp = t
	return &e, nil
}

// AddHistory records a detection.
func (s *Store) AddHistory(ctx context.Context, name, image string) (*database.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"INSERT INTO history (name, image, timestamp) VALUES (?, ?, datetime('now')) RETURNING id, name, COALESCE(image, ''), timestamp",
		name, image,
	)
	e, err := scanHistory(row)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return e, nil
}

// historyQuery builds the WHERE clause shared by ListHistory. Timestamps are
// compared as text, which sorts correctly for the fixed-width layout.
func historyQuery(filter database.HistoryFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Name != "" {
		clauses = append(clauses, "name LIKE ?")
		args = append(args, "%"+filter.Name+"%")
	}
	if filter.From != "" {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.From+" 00:00:00")
	}
	if filter.To != "" {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.To+" 23:59:59")
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

	return fmt.Sprintf(
		"SELECT id, name, COALESCE(image, ''), timestamp FROM history %s ORDER BY timestamp DESC, id DESC LIMIT ?",
		where,
	), args
}

// ListHistory returns filtered history entries, newest first.
func (s *Store) ListHistory(ctx context.Context, filter database.HistoryFilter) ([]database.HistoryEntry, error) {
	query, args := historyQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
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
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// GetHistory returns a single entry.
func (s *Store) GetHistory(ctx context.Context, id int64) (*database.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, COALESCE(image, ''), timestamp FROM history WHERE id = ?", id)
	e, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return e, nil
}

// ClearHistory removes every entry.
func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// PruneHistory deletes entries older than before.
func (s *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE timestamp < ?", database.FormatTimestamp(before))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}
