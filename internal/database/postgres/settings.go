package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// GetSettings returns the saved settings for a user.
func (p *Pool) GetSettings(ctx context.Context, userID int64) (*database.UserSettings, error) {
	var s database.UserSettings
	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, threshold, sound_alert, push_notifications, updated_at
		FROM user_settings WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.Threshold, &s.SoundAlert, &s.PushNotifications, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// UpsertSettings inserts or replaces a user's settings and stamps updated_at.
func (p *Pool) UpsertSettings(ctx context.Context, settings *database.UserSettings) error {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, threshold, sound_alert, push_notifications, updated_at)
		VALUES ($1, $2, $3, $4, date_trunc('second', NOW()))
		ON CONFLICT (user_id) DO UPDATE SET
			threshold = EXCLUDED.threshold,
			sound_alert = EXCLUDED.sound_alert,
			push_notifications = EXCLUDED.push_notifications,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at`,
		settings.UserID, settings.Threshold, settings.SoundAlert, settings.PushNotifications,
	).Scan(&settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return nil
}
