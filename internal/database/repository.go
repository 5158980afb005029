package database

import (
	"context"
	"time"
)

// FaceReader provides read-only access to known faces
type FaceReader interface {
	// ListFaces returns all known faces, newest first
	ListFaces(ctx context.Context) ([]KnownFace, error)
	// GetFace returns a face by ID or ErrNotFound
	GetFace(ctx context.Context, id int64) (*KnownFace, error)
	// GetFacesByName returns faces whose normalized name equals the normalized input
	// (lowercase, no diacritics, dashes to spaces), oldest first.
	GetFacesByName(ctx context.Context, name string) ([]KnownFace, error)
	// CountFaces returns the number of known faces
	CountFaces(ctx context.Context) (int, error)
}

// NearestFaceFinder is implemented by backends that can order faces by
// Euclidean distance themselves (pgvector).
type NearestFaceFinder interface {
	NearestFaces(ctx context.Context, descriptor []float32, limit int) ([]KnownFace, []float64, error)
}

// FaceWriter provides write access to known faces
type FaceWriter interface {
	FaceReader

	// CreateFace inserts a face and returns its ID
	CreateFace(ctx context.Context, face *KnownFace) (int64, error)
	// UpdateFace applies a partial update and returns the stored row, or ErrNotFound
	UpdateFace(ctx context.Context, id int64, update KnownFaceUpdate) (*KnownFace, error)
	// DeleteFace removes a face. Deleting a missing face is not an error.
	DeleteFace(ctx context.Context, id int64) error
}

// HistoryStore persists detection history
type HistoryStore interface {
	AddHistory(ctx context.Context, name, image string) (*HistoryEntry, error)
	ListHistory(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error)
	GetHistory(ctx context.Context, id int64) (*HistoryEntry, error)
	ClearHistory(ctx context.Context) error
	// PruneHistory deletes entries older than the cutoff and returns how many were removed
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
}

// AlertStore persists alerts
type AlertStore interface {
	AddAlert(ctx context.Context, alert *Alert) (int64, error)
	ListAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// UserStore persists dashboard accounts
type UserStore interface {
	// GetUserByUsername returns the user or ErrNotFound
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) (int64, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdatePIN(ctx context.Context, username, pinHash string) error
}

// SettingsStore persists per-user settings
type SettingsStore interface {
	// GetSettings returns the user's settings or ErrNotFound when none were saved
	GetSettings(ctx context.Context, userID int64) (*UserSettings, error)
	UpsertSettings(ctx context.Context, settings *UserSettings) error
}

// SubscriptionStore persists Web Push subscriptions
type SubscriptionStore interface {
	// UpsertSubscription inserts or replaces the subscription with the same endpoint
	UpsertSubscription(ctx context.Context, endpoint, payload string) error
	ListSubscriptions(ctx context.Context) ([]PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Store groups every repository a backend provides.
type Store interface {
	FaceWriter
	HistoryStore
	AlertStore
	UserStore
	SettingsStore
	SubscriptionStore

	// Backend returns the backend name ("sqlite" or "postgres")
	Backend() string
	// Migrate applies pending schema migrations
	Migrate(ctx context.Context) error
	Close() error
}
