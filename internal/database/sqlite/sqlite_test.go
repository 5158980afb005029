package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrate_Idempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	versions, err := store.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied: %v", err)
	}
	if len(versions) != 3 {
		t.Errorf("expected 3 applied migrations, got %v", versions)
	}
	if versions[0] != "001_initial.sql" {
		t.Errorf("first migration = %q", versions[0])
	}
}

func TestKnownFaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	aliceID, err := store.CreateFace(ctx, &database.KnownFace{Name: "Alice", Encoding: []float32{0.1, 0.2}, ImageURL: "a.jpg"})
	if err != nil {
		t.Fatalf("CreateFace: %v", err)
	}
	adminID, err := store.CreateFace(ctx, &database.KnownFace{Name: "Admin", Encoding: []float32{0.3, 0.4}})
	if err != nil {
		t.Fatalf("CreateFace: %v", err)
	}

	t.Run("ListNewestFirst", func(t *testing.T) {
		faces, err := store.ListFaces(ctx)
		if err != nil {
			t.Fatalf("ListFaces: %v", err)
		}
		if len(faces) != 2 || faces[0].ID != adminID || faces[1].ID != aliceID {
			t.Fatalf("unexpected order: %+v", faces)
		}
		if faces[1].Wanted {
			t.Error("new faces should not be wanted")
		}
		if len(faces[1].Encoding) != 2 || faces[1].Encoding[1] != 0.2 {
			t.Errorf("encoding not round-tripped: %v", faces[1].Encoding)
		}
	})

	t.Run("GetByNormalizedName", func(t *testing.T) {
		faces, err := store.GetFacesByName(ctx, " ADMIN ")
		if err != nil {
			t.Fatalf("GetFacesByName: %v", err)
		}
		if len(faces) != 1 || faces[0].ID != adminID {
			t.Errorf("expected admin face, got %+v", faces)
		}
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		wanted := true
		updated, err := store.UpdateFace(ctx, aliceID, database.KnownFaceUpdate{Wanted: &wanted})
		if err != nil {
			t.Fatalf("UpdateFace: %v", err)
		}
		if !updated.Wanted || updated.Name != "Alice" || updated.ImageURL != "a.jpg" {
			t.Errorf("unexpected update result %+v", updated)
		}

		got, err := store.GetFace(ctx, aliceID)
		if err != nil {
			t.Fatalf("GetFace: %v", err)
		}
		if !got.Wanted {
			t.Error("wanted flag not persisted")
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		name := "Ghost"
		_, err := store.UpdateFace(ctx, 9999, database.KnownFaceUpdate{Name: &name})
		if !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		if err := store.DeleteFace(ctx, aliceID); err != nil {
			t.Fatalf("DeleteFace: %v", err)
		}
		if err := store.DeleteFace(ctx, aliceID); err != nil {
			t.Fatalf("second DeleteFace: %v", err)
		}
		count, err := store.CountFaces(ctx)
		if err != nil {
			t.Fatalf("CountFaces: %v", err)
		}
		if count != 1 {
			t.Errorf("CountFaces = %d, want 1", count)
		}
		if _, err := store.GetFace(ctx, aliceID); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Seed rows with fixed timestamps.
	seed := []struct {
		name, ts string
	}{
		{"Alice", "2024-01-01 08:00:00"},
		{"Bob", "2024-01-02 12:00:00"},
		{"alice smith", "2024-01-03 23:59:59"},
		{"Unknown", "2024-01-04 00:00:00"},
	}
	for _, s := range seed {
		if _, err := store.DB().ExecContext(ctx, "INSERT INTO history (name, image, timestamp) VALUES (?, '', ?)", s.name, s.ts); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter database.HistoryFilter
		want   []string
	}{
		{"all newest first", database.HistoryFilter{}, []string{"Unknown", "alice smith", "Bob", "Alice"}},
		{"name substring case-insensitive", database.HistoryFilter{Name: "ALICE"}, []string{"alice smith", "Alice"}},
		{"from inclusive", database.HistoryFilter{From: "2024-01-03"}, []string{"Unknown", "alice smith"}},
		{"to inclusive end of day", database.HistoryFilter{To: "2024-01-03"}, []string{"alice smith", "Bob", "Alice"}},
		{"range", database.HistoryFilter{From: "2024-01-02", To: "2024-01-02"}, []string{"Bob"}},
		{"limit", database.HistoryFilter{Limit: 1}, []string{"Unknown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.ListHistory(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListHistory: %v", err)
			}
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, e := range entries {
				if e.Name != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, e.Name, tt.want[i])
				}
			}
		})
	}

	t.Run("AddAndGet", func(t *testing.T) {
		entry, err := store.AddHistory(ctx, "Carol", "data:image/jpeg;base64,AAAA")
		if err != nil {
			t.Fatalf("AddHistory: %v", err)
		}
		if time.Since(entry.Timestamp) > time.Minute {
			t.Errorf("timestamp %v is not recent", entry.Timestamp)
		}
		got, err := store.GetHistory(ctx, entry.ID)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if got.Image != "data:image/jpeg;base64,AAAA" {
			t.Errorf("image = %q", got.Image)
		}
	})

	t.Run("Prune", func(t *testing.T) {
		removed, err := store.PruneHistory(ctx, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("PruneHistory: %v", err)
		}
		if removed != 2 {
			t.Errorf("removed %d, want 2", removed)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := store.ClearHistory(ctx); err != nil {
			t.Fatalf("ClearHistory: %v", err)
		}
		entries, err := store.ListHistory(ctx, database.HistoryFilter{})
		if err != nil {
			t.Fatalf("ListHistory: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected empty history, got %d", len(entries))
		}
	})
}

func TestAlerts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	conf := 0.82
	if _, err := store.AddAlert(ctx, &database.Alert{Name: "Mallory", AlertType: "wanted_match", Confidence: &conf, DetectionStatus: "wanted"}); err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if _, err := store.AddAlert(ctx, &database.Alert{Name: "Unknown", AlertType: "unknown_face", DetectionStatus: "unknown"}); err != nil {
		t.Fatalf("AddAlert: %v", err)
	}

	alerts, err := store.ListAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].Name != "Unknown" || alerts[0].Confidence != nil {
		t.Errorf("unexpected newest alert %+v", alerts[0])
	}
	if alerts[1].Confidence == nil || *alerts[1].Confidence != 0.82 {
		t.Errorf("confidence not stored: %+v", alerts[1])
	}
}

func TestUsersAndSettings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.CreateUser(ctx, &database.User{Username: "admin", PasswordHash: "p", PINHash: "n"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := store.CreateUser(ctx, &database.User{Username: "admin", PasswordHash: "x", PINHash: "y"}); !errors.Is(err, database.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if err := store.UpdatePIN(ctx, "admin", "n2"); err != nil {
		t.Fatalf("UpdatePIN: %v", err)
	}
	if err := store.UpdatePassword(ctx, "nobody", "x"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	u, err := store.GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u.ID != id || u.PINHash != "n2" {
		t.Errorf("unexpected user %+v", u)
	}

	if _, err := store.GetSettings(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before saving settings, got %v", err)
	}

	settings := &database.UserSettings{UserID: id, Threshold: 0.4, SoundAlert: false, PushNotifications: true}
	if err := store.UpsertSettings(ctx, settings); err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	settings.Threshold = 0.6
	if err := store.UpsertSettings(ctx, settings); err != nil {
		t.Fatalf("second UpsertSettings: %v", err)
	}

	got, err := store.GetSettings(ctx, id)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.Threshold != 0.6 || got.SoundAlert || !got.PushNotifications {
		t.Errorf("unexpected settings %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("updated_at not set")
	}
}

func TestSubscriptions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.UpsertSubscription(ctx, "https://push.example/1", `{"v":1}`); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	if err := store.UpsertSubscription(ctx, "https://push.example/1", `{"v":2}`); err != nil {
		t.Fatalf("UpsertSubscription replace: %v", err)
	}
	if err := store.UpsertSubscription(ctx, "https://push.example/2", `{"v":3}`); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}

	subs, err := store.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions, got %d", len(subs))
	}
	if subs[0].Payload != `{"v":2}` {
		t.Errorf("payload not replaced: %q", subs[0].Payload)
	}

	if err := store.DeleteSubscription(ctx, "https://push.example/1"); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	subs, _ = store.ListSubscriptions(ctx)
	if len(subs) != 1 {
		t.Errorf("expected 1 subscription after delete, got %d", len(subs))
	}
}

func TestBackup(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateFace(ctx, &database.KnownFace{Name: "Alice", Encoding: []float32{1}}); err != nil {
		t.Fatalf("CreateFace: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := store.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	copyStore, err := Open(dest)
	if err != nil {
		t.Fatalf("Open backup: %v", err)
	}
	defer copyStore.Close()

	if err := copyStore.IntegrityCheck(ctx); err != nil {
		t.Fatalf("IntegrityCheck: %v", err)
	}
	count, err := copyStore.CountFaces(ctx)
	if err != nil {
		t.Fatalf("CountFaces: %v", err)
	}
	if count != 1 {
		t.Errorf("backup has %d faces, want 1", count)
	}
}
