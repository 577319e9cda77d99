// package tasks implements the local liked-songs sync engine.
//
// The core abstraction is SyncEngine, which mirrors the user's remote liked
// songs into the local track cache. Operations emit progress updates via
// channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/repositories"
	"github.com/desertthunder/likedsync/internal/shared"
	"golang.org/x/time/rate"
)

// pageSize is the Spotify saved-tracks page limit.
const pageSize = 50

// LibraryReader pages through the user's remote liked songs. Implemented by
// services.SpotifyService; abstracted for testing.
type LibraryReader interface {
	SavedTracksPage(ctx context.Context, limit, offset int) ([]models.Track, int, error)
}

// TrackWriter persists tracks into the local collection. Implemented by
// repositories.TrackRepository.
type TrackWriter interface {
	Upsert(track *models.Track) (bool, error)
}

// SyncOpts configures a sync pass.
type SyncOpts struct {
	ForceFull bool    // Ignore the incremental watermark and walk the whole library
	RateLimit float64 // Page requests per second (default 5)
}

// SyncEngine mirrors remote liked songs into the local track cache.
type SyncEngine struct {
	library LibraryReader
	tracks  TrackWriter
	markers *repositories.MarkerRepository
}

// NewSyncEngine creates a SyncEngine with the provided collaborators.
func NewSyncEngine(library LibraryReader, tracks TrackWriter, markers *repositories.MarkerRepository) *SyncEngine {
	return &SyncEngine{
		library: library,
		tracks:  tracks,
		markers: markers,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Run performs one sync pass. Incremental mode stops paging once it reaches
// tracks added before the last sync watermark; a full sync walks the entire
// library. Page fetches are rate limited to respect the API's limits.
func (e *SyncEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOpts) (*models.SyncSummary, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: library reader not initialized", shared.ErrServiceUnavailable)
	}
	if e.tracks == nil {
		return nil, fmt.Errorf("%w: track store not initialized", shared.ErrServiceUnavailable)
	}

	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	var watermark time.Time
	if !opts.ForceFull && e.markers != nil {
		if t, ok, err := e.markers.GetTime(repositories.MarkerLastSyncAt); err == nil && ok {
			watermark = t
		}
	}

	start := time.Now()
	summary := &models.SyncSummary{FullSync: opts.ForceFull || watermark.IsZero()}

	offset := 0
	total := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return summary, fmt.Errorf("sync cancelled: %w", err)
		}

		e.sendProgress(progress, fetchPageUpdate(offset, total))

		page, pageTotal, err := e.library.SavedTracksPage(ctx, pageSize, offset)
		if err != nil {
			return summary, fmt.Errorf("%w: failed to fetch liked songs page at offset %d: %v", shared.ErrAPIRequest, offset, err)
		}
		total = pageTotal

		reachedWatermark := false
		for i := range page {
			track := page[i]
			added, err := e.tracks.Upsert(&track)
			if err != nil {
				return summary, fmt.Errorf("failed to cache track %s: %w", track.ID, err)
			}

			summary.TracksProcessed++
			if added {
				summary.NewTracksAdded++
			}

			// Saved tracks come back newest first; once we see a track
			// added before the watermark, everything older is already cached.
			if !watermark.IsZero() && !track.AddedAt.IsZero() && track.AddedAt.Before(watermark) {
				reachedWatermark = true
			}
		}

		e.sendProgress(progress, cacheTracksUpdate(summary.TracksProcessed, total))

		offset += len(page)
		if len(page) < pageSize || offset >= total || reachedWatermark {
			break
		}
	}

	now := time.Now()
	summary.Duration = now.Sub(start)
	summary.SyncedAt = now

	if e.markers != nil {
		if err := e.markers.SetTime(repositories.MarkerLastSyncAt, now); err != nil {
			return summary, fmt.Errorf("failed to record sync watermark: %w", err)
		}
		if summary.FullSync {
			if err := e.markers.SetTime(repositories.MarkerLastFullSyncAt, now); err != nil {
				return summary, fmt.Errorf("failed to record full sync watermark: %w", err)
			}
		}
	}

	e.sendProgress(progress, finalizeUpdate(summary.NewTracksAdded, summary.TracksProcessed))
	return summary, nil
}
