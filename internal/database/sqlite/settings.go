package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// GetSettings returns the saved settings for a user.
func (s *Store) GetSettings(ctx context.Context, userID int64) (*database.UserSettings, error) {
	var (
		st           database.UserSettings
		sound, popup int
		updatedAt    string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, threshold, sound_alert, push_notifications, updated_at FROM user_settings WHERE user_id = ?",
		userID,
	).Scan(&st.UserID, &st.Threshold, &sound, &popup, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.SoundAlert = sound != 0
	st.PushNotifications = popup != 0
	if st.UpdatedAt, err = database.ParseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("settings timestamp: %w", err)
	}
	return &st, nil
}

// UpsertSettings inserts or replaces a user's settings and stamps updated_at.
func (s *Store) UpsertSettings(ctx context.Context, settings *database.UserSettings) error {
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, threshold, sound_alert, push_notifications, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			threshold = excluded.threshold,
			sound_alert = excluded.sound_alert,
			push_notifications = excluded.push_notifications,
			updated_at = datetime('now')
		RETURNING updated_at`,
		settings.UserID, settings.Threshold, boolToInt(settings.SoundAlert), boolToInt(settings.PushNotifications),
	).Scan(&updatedAt)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	if t, err := database.ParseTimestamp(updatedAt); err == nil {
		settings.UpdatedAt = t
	}
	return nil
}
