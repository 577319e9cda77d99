package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/likedsync/internal/formatter"
	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/shared"
	"github.com/desertthunder/likedsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync mirrors liked songs. The default path asks the backend to run the
// sync server-side; --local pages the library directly from Spotify into
// the local cache, which needs a provider access token.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	var summary *models.SyncSummary

	if cmd.Bool("local") {
		local, err := r.localSync(ctx, cmd.Bool("full"))
		if err != nil {
			return err
		}
		summary = local
	} else {
		result := r.store.SyncLikedSongs(ctx, cmd.Bool("full"))
		if !result.Success {
			return fmt.Errorf("sync failed: %s", result.Error)
		}
		summary = result.Data
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary, true)
	}
	return r.writeBytes(formatter.SyncText(summary))
}

// localSync runs the in-process sync engine against the Spotify Web API.
// The provider access token comes from SPOTIFY_ACCESS_TOKEN since the
// long-lived tokens stay vaulted on the backend.
func (r *Runner) localSync(ctx context.Context, forceFull bool) (*models.SyncSummary, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: set credentials.spotify.client_id in config.toml", shared.ErrNotConfigured)
	}

	accessToken := os.Getenv("SPOTIFY_ACCESS_TOKEN")
	if accessToken == "" {
		return nil, fmt.Errorf("%w: SPOTIFY_ACCESS_TOKEN is required for a local sync", shared.ErrNotConfigured)
	}
	if err := r.spotify.UseAccessToken(ctx, accessToken); err != nil {
		return nil, err
	}

	engine := tasks.NewSyncEngine(r.spotify, r.tracks, r.markers)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	summary, err := engine.Run(ctx, progress, tasks.SyncOpts{
		ForceFull: forceFull,
		RateLimit: float64(r.config.Connection.SyncRateLimit),
	})
	close(progress)
	<-done

	if err != nil {
		return nil, fmt.Errorf("local sync failed: %w", err)
	}
	return summary, nil
}

// Tracks lists the locally cached liked songs.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	tracks, err := r.tracks.List(limit)
	if err != nil {
		return err
	}

	if cmd.Bool("csv") {
		data, err := formatter.TracksToCSV(tracks)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}

	count, err := r.tracks.Count()
	if err != nil {
		return err
	}

	if len(tracks) == 0 {
		return r.writePlain("No cached tracks. Run `likedsync sync` first.\n")
	}

	for _, track := range tracks {
		line := fmt.Sprintf("%s — %s", track.Artist, track.Title)
		if track.Album != "" {
			line += fmt.Sprintf(" (%s)", track.Album)
		}
		r.writePlain("%s\n", line)
	}
	return r.writePlain("\n%d of %d cached tracks\n", len(tracks), count)
}
