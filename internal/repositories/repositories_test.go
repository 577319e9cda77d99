package repositories

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/services"
	"github.com/desertthunder/likedsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestMarkerRepository(t *testing.T) {
	t.Run("SetAndGet", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		if err := repo.Set(MarkerAccountID, "user123"); err != nil {
			t.Fatalf("failed to set marker: %v", err)
		}

		value, ok, err := repo.Get(MarkerAccountID)
		if err != nil {
			t.Fatalf("failed to get marker: %v", err)
		}
		if !ok || value != "user123" {
			t.Errorf("expected user123, got %q (ok=%v)", value, ok)
		}
	})

	t.Run("MissingMarkerIsNotAnError", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		value, ok, err := repo.Get("nope")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || value != "" {
			t.Errorf("expected absent marker, got %q (ok=%v)", value, ok)
		}
	})

	t.Run("SetReplaces", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		if err := repo.Set(MarkerSessionPresent, "1"); err != nil {
			t.Fatalf("failed to set marker: %v", err)
		}
		if err := repo.Set(MarkerSessionPresent, "2"); err != nil {
			t.Fatalf("failed to replace marker: %v", err)
		}

		value, _, _ := repo.Get(MarkerSessionPresent)
		if value != "2" {
			t.Errorf("expected replaced value 2, got %q", value)
		}
	})

	t.Run("Has", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		if ok, _ := repo.Has(MarkerSessionPresent); ok {
			t.Error("expected marker to be absent")
		}

		repo.Set(MarkerSessionPresent, "1")
		if ok, _ := repo.Has(MarkerSessionPresent); !ok {
			t.Error("expected marker to exist")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		repo.Set(MarkerOAuthState, "nonce")
		if err := repo.Clear(MarkerOAuthState); err != nil {
			t.Fatalf("failed to clear marker: %v", err)
		}
		if ok, _ := repo.Has(MarkerOAuthState); ok {
			t.Error("expected marker to be cleared")
		}

		// Clearing a missing marker is a no-op.
		if err := repo.Clear(MarkerOAuthState); err != nil {
			t.Errorf("clearing a missing marker should not fail: %v", err)
		}
	})

	t.Run("ClearAll", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		repo.Set(MarkerSessionPresent, "1")
		repo.Set(MarkerAccountID, "user")

		if err := repo.ClearAll(); err != nil {
			t.Fatalf("failed to clear all markers: %v", err)
		}
		if ok, _ := repo.Has(MarkerSessionPresent); ok {
			t.Error("expected all markers cleared")
		}
	})

	t.Run("Timestamps", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		if err := repo.SetTime(MarkerLastSyncAt, now); err != nil {
			t.Fatalf("failed to set time marker: %v", err)
		}

		got, ok, err := repo.GetTime(MarkerLastSyncAt)
		if err != nil {
			t.Fatalf("failed to get time marker: %v", err)
		}
		if !ok || !got.Equal(now) {
			t.Errorf("expected %s, got %s (ok=%v)", now, got, ok)
		}
	})

	t.Run("MalformedTimestampTreatedAsAbsent", func(t *testing.T) {
		repo := NewMarkerRepository(setupTestDB(t))

		repo.Set(MarkerLastSyncAt, "not-a-timestamp")

		_, ok, err := repo.GetTime(MarkerLastSyncAt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("corrupted watermark should read as absent")
		}
	})
}

func TestTrackRepository(t *testing.T) {
	track := func(id string, addedAt time.Time) *models.Track {
		return &models.Track{
			ID:      id,
			Title:   "Title " + id,
			Artist:  "Artist",
			Album:   "Album",
			AddedAt: addedAt,
		}
	}

	t.Run("UpsertInsertsThenUpdates", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		added, err := repo.Upsert(track("t1", time.Now()))
		if err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}
		if !added {
			t.Error("first upsert should report added")
		}

		added, err = repo.Upsert(track("t1", time.Now()))
		if err != nil {
			t.Fatalf("failed to re-upsert track: %v", err)
		}
		if added {
			t.Error("second upsert should not report added")
		}

		count, err := repo.Count()
		if err != nil {
			t.Fatalf("failed to count tracks: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 track, got %d", count)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		want := track("t2", time.Now().UTC().Truncate(time.Second))
		if _, err := repo.Upsert(want); err != nil {
			t.Fatalf("failed to upsert track: %v", err)
		}

		got, err := repo.Get("t2")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if got == nil || got.Title != want.Title || got.Artist != want.Artist {
			t.Errorf("retrieved track doesn't match: %+v", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		got, err := repo.Get("absent")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for missing track, got %+v", got)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, id := range []string{"old", "mid", "new"} {
			if _, err := repo.Upsert(track(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
				t.Fatalf("failed to upsert %s: %v", id, err)
			}
		}

		tracks, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list tracks: %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "new" || tracks[1].ID != "mid" {
			t.Errorf("expected newest first, got %s then %s", tracks[0].ID, tracks[1].ID)
		}
	})
}

func TestSessionFile(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store := NewSessionFile(path)

		session := &services.Session{
			Token:        "token",
			RefreshToken: "refresh",
			UserID:       "user",
			ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		}

		if err := store.Save(session); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("failed to load session: %v", err)
		}
		if loaded == nil || loaded.Token != "token" || loaded.UserID != "user" {
			t.Errorf("loaded session doesn't match: %+v", loaded)
		}
	})

	t.Run("MissingFileIsSignedOut", func(t *testing.T) {
		store := NewSessionFile(filepath.Join(t.TempDir(), "session.json"))

		session, err := store.Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session != nil {
			t.Errorf("expected nil session for missing file, got %+v", session)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store := NewSessionFile(path)

		store.Save(&services.Session{Token: "token"})
		if err := store.Clear(); err != nil {
			t.Fatalf("failed to clear session: %v", err)
		}

		session, _ := store.Load()
		if session != nil {
			t.Error("expected session to be cleared")
		}

		// Clearing again is a no-op.
		if err := store.Clear(); err != nil {
			t.Errorf("clearing a missing session should not fail: %v", err)
		}
	})

	t.Run("SaveNil", func(t *testing.T) {
		store := NewSessionFile(filepath.Join(t.TempDir(), "session.json"))
		if err := store.Save(nil); err == nil {
			t.Error("expected error saving nil session")
		}
	})
}
