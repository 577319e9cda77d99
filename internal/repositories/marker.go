package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// MarkerRepository persists the small key/value marker set indicating local
// credential state ("a local session may exist", a pending OAuth state
// nonce, sync watermarks).
type MarkerRepository struct {
	db *sql.DB
}

// NewMarkerRepository creates a new [MarkerRepository] with the given database connection
func NewMarkerRepository(db *sql.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

// Set stores or replaces a marker value.
func (r *MarkerRepository) Set(key, value string) error {
	query := `
		INSERT INTO markers (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to set marker %s: %w", key, err)
	}
	return nil
}

// Get retrieves a marker value. A missing marker returns ("", false, nil).
func (r *MarkerRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM markers WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query marker %s: %w", key, err)
	}
	return value, true, nil
}

// Has reports whether a marker exists.
func (r *MarkerRepository) Has(key string) (bool, error) {
	_, ok, err := r.Get(key)
	return ok, err
}

// Clear removes a single marker. Clearing a missing marker is a no-op.
func (r *MarkerRepository) Clear(key string) error {
	if _, err := r.db.Exec(`DELETE FROM markers WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to clear marker %s: %w", key, err)
	}
	return nil
}

// ClearAll removes every marker. Used when a rejected credential forces a
// full local sign-out.
func (r *MarkerRepository) ClearAll() error {
	if _, err := r.db.Exec(`DELETE FROM markers`); err != nil {
		return fmt.Errorf("failed to clear markers: %w", err)
	}
	return nil
}

// SetTime stores a timestamp marker in RFC3339.
func (r *MarkerRepository) SetTime(key string, t time.Time) error {
	return r.Set(key, t.UTC().Format(time.RFC3339))
}

// GetTime retrieves a timestamp marker. A missing or malformed marker
// returns (zero, false, nil); corruption in a watermark is treated the same
// as absence.
func (r *MarkerRepository) GetTime(key string) (time.Time, bool, error) {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
