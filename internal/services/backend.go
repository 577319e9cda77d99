// HTTP client for the hosted backend that owns the token vault and the
// liked-songs sync functions
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/shared"
)

// BackendClient implements [Backend] over HTTP with a bearer-token calling
// convention. Session state is persisted through a [SessionStore] so that a
// cached session survives restarts.
type BackendClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	sessions   SessionStore
}

// NewBackendClient creates a backend client. The anon key authenticates
// unauthenticated endpoints (session refresh); everything else requires a
// session bearer token.
func NewBackendClient(baseURL, anonKey string, client *http.Client, sessions SessionStore) (*BackendClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: backend base_url", shared.ErrNotConfigured)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &BackendClient{
		baseURL:    baseURL,
		anonKey:    anonKey,
		httpClient: client,
		sessions:   sessions,
	}, nil
}

// backendError is the backend's JSON error body.
type backendError struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// doRequest performs a JSON request against the backend. A non-empty bearer
// token is attached when provided; the anon key always is. Transport
// failures and gateway timeouts surface as [shared.ErrNetwork], 401/403 as
// [shared.ErrRejected], 429 as a [shared.RateLimitError].
func (b *BackendClient) doRequest(ctx context.Context, method, endpoint, bearer string, body, result any) error {
	apiURL := b.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if b.anonKey != "" {
		req.Header.Set("apikey", b.anonKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return shared.ErrNoConnection
	}

	if kind := shared.ClassifyStatus(resp.StatusCode); kind != nil {
		var apiErr backendError
		data, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(data, &apiErr)

		if kind == shared.ErrRateLimited {
			retryAfter := apiErr.RetryAfter
			if retryAfter == 0 {
				retryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
			}
			return shared.NewRateLimitError(retryAfter)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%w: %s (status %d)", kind, apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d", kind, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// authedRequest loads the cached session and performs the request with its
// bearer token. A missing session is a rejection: the caller holds no
// credential the backend could honor.
func (b *BackendClient) authedRequest(ctx context.Context, method, endpoint string, body, result any) error {
	session, err := b.loadSession()
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: no local session", shared.ErrNotAuthenticated)
	}
	return b.doRequest(ctx, method, endpoint, session.Token, body, result)
}

func (b *BackendClient) loadSession() (*Session, error) {
	if b.sessions == nil {
		return nil, nil
	}
	session, err := b.sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// ExchangeCode trades an OAuth authorization code for a connection record.
func (b *BackendClient) ExchangeCode(ctx context.Context, code string) (*models.Connection, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	var conn models.Connection
	payload := map[string]string{"code": code}
	if err := b.authedRequest(ctx, http.MethodPost, "/token-exchange", payload, &conn); err != nil {
		return nil, err
	}
	if err := conn.Validate(); err != nil {
		return nil, fmt.Errorf("backend returned invalid connection: %w", err)
	}
	return &conn, nil
}

// GetConnection returns the stored connection or (nil, nil) when none exists.
func (b *BackendClient) GetConnection(ctx context.Context) (*models.Connection, error) {
	var conn models.Connection
	err := b.authedRequest(ctx, http.MethodGet, "/connection", nil, &conn)
	if err != nil {
		if errors.Is(err, shared.ErrNoConnection) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

// DeleteConnection removes the stored connection. Deleting a connection that
// does not exist is a no-op.
func (b *BackendClient) DeleteConnection(ctx context.Context) error {
	err := b.authedRequest(ctx, http.MethodDelete, "/connection", nil, nil)
	if errors.Is(err, shared.ErrNoConnection) {
		return nil
	}
	return err
}

// RefreshTokens asks the backend to refresh the vaulted provider tokens.
func (b *BackendClient) RefreshTokens(ctx context.Context) (*models.Connection, error) {
	var conn models.Connection
	if err := b.authedRequest(ctx, http.MethodPost, "/token-refresh", nil, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// SyncLikedSongs triggers a server-side liked songs sync pass. The response
// is treated as opaque beyond the processed/added counts.
func (b *BackendClient) SyncLikedSongs(ctx context.Context, forceFull bool) (*models.SyncSummary, error) {
	var summary models.SyncSummary
	payload := map[string]bool{"force_full_sync": forceFull}
	if err := b.authedRequest(ctx, http.MethodPost, "/sync", payload, &summary); err != nil {
		return nil, err
	}
	summary.FullSync = forceFull
	return &summary, nil
}

// HealthCheck verifies the backend is reachable.
func (b *BackendClient) HealthCheck(ctx context.Context) error {
	return b.doRequest(ctx, http.MethodGet, "/health", "", nil, nil)
}

// GetUser confirms the server still honors the session token.
func (b *BackendClient) GetUser(ctx context.Context) (*User, error) {
	var user User
	if err := b.authedRequest(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchSession returns the cached session, refreshing it against the backend
// when forced or when the cached token has expired. Returns (nil, nil) when
// no session has ever been stored.
func (b *BackendClient) FetchSession(ctx context.Context, forceRefresh bool) (*Session, error) {
	session, err := b.loadSession()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	if !forceRefresh && !session.IsExpired(time.Now()) {
		return session, nil
	}

	if session.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	var refreshed Session
	payload := map[string]string{"refresh_token": session.RefreshToken}
	if err := b.doRequest(ctx, http.MethodPost, "/auth/refresh", "", payload, &refreshed); err != nil {
		return nil, err
	}

	if b.sessions != nil {
		if err := b.sessions.Save(&refreshed); err != nil {
			return nil, fmt.Errorf("failed to persist refreshed session: %w", err)
		}
	}
	return &refreshed, nil
}

// SignOut invalidates the local session server-side and drops the cached
// copy. Server-side failure still clears the local copy.
func (b *BackendClient) SignOut(ctx context.Context) error {
	session, err := b.loadSession()
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	reqErr := b.doRequest(ctx, http.MethodPost, "/auth/signout", session.Token, nil, nil)
	if b.sessions != nil {
		if err := b.sessions.Clear(); err != nil {
			return fmt.Errorf("failed to clear local session: %w", err)
		}
	}
	return reqErr
}
