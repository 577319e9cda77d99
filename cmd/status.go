package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/likedsync/internal/formatter"
	"github.com/desertthunder/likedsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Status prints the current connection state, refreshing it first via a
// cooldown-respecting check. With --watch it opens the live status view.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	if cmd.Bool("watch") {
		model := ui.NewModel(ctx, r.store)
		go r.store.CheckConnection(ctx, false)

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("status view failed: %w", err)
		}
		return nil
	}

	r.store.CheckConnection(ctx, false)
	state := r.store.State()

	if cmd.Bool("json") {
		return r.writeJSON(state, true)
	}
	return r.writeBytes(formatter.StatusText(state, time.Now()))
}

// Check runs an explicit connection check against the backend.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	result := r.store.CheckConnection(ctx, cmd.Bool("force"))
	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	if !result.Success {
		return fmt.Errorf("connection check failed: %s", result.Error)
	}

	if result.Metadata.ServedFromCache {
		r.writePlain("(served from cache, use --force to bypass the cooldown)\n")
	}
	return r.writeBytes(formatter.StatusText(r.store.State(), time.Now()))
}

// Validate runs the startup session validation procedure and reports the
// outcome.
func (r *Runner) Validate(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	result := r.store.ValidateOnStartup(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writeBytes(formatter.ValidationText(result))
}

// Refresh forces a proactive token refresh now.
func (r *Runner) Refresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	result := r.store.RefreshTokens(ctx)
	if !result.Success {
		if result.Data.RateLimited {
			return fmt.Errorf("refresh rate limited, retry after %ds", result.Data.RetryAfterSeconds)
		}
		return fmt.Errorf("token refresh failed: %s", result.Error)
	}

	r.writePlain("Tokens refreshed (attempts: %d)\n", result.Metadata.Attempts)
	if at, ok := r.store.RefreshScheduledAt(); ok {
		r.writePlain("Next refresh scheduled for %s\n", at.Format(time.Kitchen))
	}
	return nil
}

// Health checks backend reachability and reports connection health.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	result := r.store.PerformHealthCheck(ctx)
	report := result.Data

	r.writePlain("Backend: ")
	if result.Success {
		r.writePlain("✓ reachable\n")
	} else {
		r.writePlain("✗ unreachable (%s)\n", result.Error)
	}
	r.writePlain("Connection health: %s\n", report.Status)
	if report.ExpiresInMinutes != 0 {
		r.writePlain("Token expires in %d minutes\n", report.ExpiresInMinutes)
	}

	if !result.Success {
		return fmt.Errorf("health check failed")
	}
	return nil
}

// Security runs the token storage risk classifier.
func (r *Runner) Security(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	// Make sure we classify a real snapshot, not the cold initial state.
	r.store.CheckConnection(ctx, false)

	result := r.store.ValidateSecurity(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(result.Data, true)
	}
	return r.writeBytes(formatter.SecurityText(result.Data))
}
