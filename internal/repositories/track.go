package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
)

// TrackRepository caches liked songs locally so the sync engine can compute
// which remote tracks are new.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new [TrackRepository] with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Upsert inserts a track or refreshes its metadata if it is already cached.
// Returns true when the track was newly added.
func (r *TrackRepository) Upsert(track *models.Track) (bool, error) {
	if err := track.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	existing, err := r.exists(track.ID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	track.SyncedAt = now

	query := `
		INSERT INTO liked_tracks (id, title, artist, album, isrc, added_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			isrc = excluded.isrc,
			synced_at = excluded.synced_at
	`

	_, err = r.db.Exec(query, track.ID, track.Title, track.Artist, track.Album, track.ISRC, track.AddedAt, now)
	if err != nil {
		return false, fmt.Errorf("failed to upsert track: %w", err)
	}

	return !existing, nil
}

func (r *TrackRepository) exists(id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM liked_tracks WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check track existence: %w", err)
	}
	return exists, nil
}

// Get retrieves a cached track by ID.
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `
		SELECT id, title, artist, album, isrc, added_at, synced_at
		FROM liked_tracks
		WHERE id = ?
	`

	track, err := scanTrack(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	return track, nil
}

// Count returns the number of cached tracks.
func (r *TrackRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM liked_tracks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

// List retrieves cached tracks newest first, bounded by limit (0 for all).
func (r *TrackRepository) List(limit int) ([]models.Track, error) {
	query := `
		SELECT id, title, artist, album, isrc, added_at, synced_at
		FROM liked_tracks
		ORDER BY added_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		track   models.Track
		album   sql.NullString
		isrc    sql.NullString
		addedAt sql.NullTime
	)

	err := row.Scan(&track.ID, &track.Title, &track.Artist, &album, &isrc, &addedAt, &track.SyncedAt)
	if err != nil {
		return nil, err
	}

	track.Album = album.String
	track.ISRC = isrc.String
	if addedAt.Valid {
		track.AddedAt = addedAt.Time
	}
	return &track, nil
}
