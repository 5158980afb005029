package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// AddAlert records an alert with the current time.
func (p *Pool) AddAlert(ctx context.Context, alert *database.Alert) (int64, error) {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO alerts (name, alert_type, confidence, detection_status, timestamp)
		VALUES ($1, $2, $3, $4, date_trunc('second', NOW()))
		RETURNING id, timestamp`,
		alert.Name, alert.AlertType, alert.Confidence, alert.DetectionStatus,
	).Scan(&alert.ID, &alert.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}
	alert.Timestamp = alert.Timestamp.UTC()
	return alert.ID, nil
}

// ListAlerts returns the most recent alerts.
func (p *Pool) ListAlerts(ctx context.Context, limit int) ([]database.Alert, error) {
	if limit <= 0 {
		limit = database.DefaultAlertLimit
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, alert_type, confidence, detection_status, timestamp
		FROM alerts ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []database.Alert
	for rows.Next() {
		var (
			a          database.Alert
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.AlertType, &confidence, &a.DetectionStatus, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if confidence.Valid {
			a.Confidence = &confidence.Float64
		}
		a.Timestamp = a.Timestamp.UTC()
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return alerts, nil
}
