package database

import (
	"time"
)

// TimestampLayout is the text form used for history and alert timestamps.
// It matches SQLite's datetime('now') so rows written by either side sort together.
const TimestampLayout = "2006-01-02 15:04:05"

// KnownFace is an enrolled face descriptor.
type KnownFace struct {
	ID       int64
	Name     string
	Encoding []float32
	ImageURL string
	Wanted   bool
}

// KnownFaceUpdate carries a partial update; nil fields keep their stored value.
type KnownFaceUpdate struct {
	Name     *string
	Encoding []float32 // nil keeps the stored descriptor
	ImageURL *string
	Wanted   *bool
}

// HistoryEntry is a single detection event with an optional data URL snapshot.
type HistoryEntry struct {
	ID        int64
	Name      string
	Image     string
	Timestamp time.Time
}

// HistoryFilter narrows history listings. From and To are YYYY-MM-DD dates, inclusive.
type HistoryFilter struct {
	Name  string
	From  string
	To    string
	Limit int
}

// Alert is a recorded detection alert.
type Alert struct {
	ID              int64
	Name            string
	AlertType       string
	Confidence      *float64 // nil when the client did not report one
	DetectionStatus string
	Timestamp       time.Time
}

// User is a dashboard account. Hashes are bcrypt.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	PINHash      string
}

// UserSettings holds per-user detection preferences.
type UserSettings struct {
	UserID            int64
	Threshold         float64
	SoundAlert        bool
	PushNotifications bool
	UpdatedAt         time.Time
}

// PushSubscription is a browser Web Push subscription. Payload is the
// subscription object exactly as the browser sent it.
type PushSubscription struct {
	ID       int64
	Endpoint string
	Payload  string
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp. RFC 3339 values are accepted too.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
