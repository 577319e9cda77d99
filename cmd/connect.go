package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/likedsync/internal/repositories"
	"github.com/desertthunder/likedsync/internal/server"
	"github.com/desertthunder/likedsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Connect runs the OAuth2 authorization flow: it opens the provider's
// consent page, captures the authorization code on a local callback server,
// and hands the code to the backend for the exchange.
func (r *Runner) Connect(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: set credentials.spotify.client_id in config.toml", shared.ErrNotConfigured)
	}

	state := shared.GenerateStateNonce()
	if err := r.markers.Set(repositories.MarkerOAuthState, state); err != nil {
		return fmt.Errorf("failed to record oauth state: %w", err)
	}

	handler := server.NewOAuthHandler(state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("callback server failed", "err", err)
			handler.Send(server.OAuthResult{})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := r.spotify.GetAuthURL(state)
	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize:\n\n  %s\n\n", authURL)
	} else {
		r.logger.Info("opening browser for authorization")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "err", err)
			r.writePlain("Open this URL to authorize:\n\n  %s\n\n", authURL)
		}
	}

	r.logger.Info("waiting for authorization callback", "addr", addr)

	var oauthResult server.OAuthResult
	select {
	case oauthResult = <-handler.Result():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("%w: no authorization callback received", shared.ErrTimeout)
	}
	if err := oauthResult.Error(); err != nil {
		return err
	}
	if oauthResult.Code == "" {
		return fmt.Errorf("authorization flow did not produce a code")
	}

	result := r.store.Connect(ctx, oauthResult.Code)
	if !result.Success {
		return fmt.Errorf("connection exchange failed: %s", result.Error)
	}

	conn := result.Data
	if err := r.markers.Set(repositories.MarkerSessionPresent, "1"); err != nil {
		r.logger.Warn("failed to record session marker", "err", err)
	}

	name := conn.AccountID
	if conn.DisplayName != "" {
		name = conn.DisplayName
	}
	return r.writePlain("Connected as %s\n", name)
}

// Disconnect removes the stored connection and local markers.
func (r *Runner) Disconnect(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(); err != nil {
		return err
	}

	result := r.store.Disconnect(ctx)
	if !result.Success {
		return fmt.Errorf("disconnect failed: %s", result.Error)
	}
	return r.writePlain("Disconnected\n")
}
