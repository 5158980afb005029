package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// AddAlert records an alert with the current time.
func (s *Store) AddAlert(ctx context.Context, alert *database.Alert) (int64, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO alerts (name, alert_type, confidence, detection_status, timestamp)
		 VALUES (?, ?, ?, ?, datetime('now')) RETURNING id, timestamp`,
		alert.Name, alert.AlertType, alert.Confidence, alert.DetectionStatus,
	).Scan(&alert.ID, &ts)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	if t, err := database.ParseTimestamp(ts); err == nil {
		alert.Timestamp = t
	}
	return alert.ID, nil
}

// ListAlerts returns the most recent alerts.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]database.Alert, error) {
	if limit <= 0 {
		limit = database.DefaultAlertLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, alert_type, confidence, detection_status, timestamp
		 FROM alerts ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []database.Alert
	for rows.Next() {
		var (
			a          database.Alert
			confidence sql.NullFloat64
			ts         string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.AlertType, &confidence, &a.DetectionStatus, &ts); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if confidence.Valid {
			a.Confidence = &confidence.Float64
		}
		if a.Timestamp, err = database.ParseTimestamp(ts); err != nil {
			return nil, fmt.Errorf("alert %d timestamp: %w", a.ID, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}
