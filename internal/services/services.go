// package services defines interfaces for the hosted backend and the
// Spotify Web API
package services

import (
	"context"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
)

// Session is the local auth session for the hosted backend. The token is a
// short-lived bearer credential for backend calls; it is not the Spotify
// token, which never leaves the backend's vault.
type Session struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired reports whether the session token's expiry is in the past.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// User is the backend's view of the authenticated account, used by the
// session validator's confirmation round trip.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// SessionStore persists the local backend session between runs.
//
// Implementations must tolerate a missing session (return nil, nil).
type SessionStore interface {
	Load() (*Session, error)
	Save(session *Session) error
	Clear() error
}

// Backend names the distinct operations this subsystem requires from the
// hosted backend. The transport is an implementation detail; the contract
// is exchange, read, delete, refresh, sync, health, and the session
// endpoints, each invoked with a bearer token.
type Backend interface {
	// ExchangeCode trades an OAuth authorization code for a stored
	// connection record. The backend performs the provider exchange and
	// vaults the tokens; the client only sees redacted references.
	ExchangeCode(ctx context.Context, code string) (*models.Connection, error)

	// GetConnection returns the current user's stored connection, or
	// (nil, nil) when no connection exists. Absence is a valid disconnected
	// state, not an error.
	GetConnection(ctx context.Context) (*models.Connection, error)

	// DeleteConnection removes the stored connection and its vaulted tokens.
	DeleteConnection(ctx context.Context) error

	// RefreshTokens asks the backend to refresh the vaulted provider tokens.
	// A rate-limited response surfaces as shared.ErrRateLimited with a
	// retry-after hint.
	RefreshTokens(ctx context.Context) (*models.Connection, error)

	// SyncLikedSongs triggers a server-side liked songs sync pass.
	SyncLikedSongs(ctx context.Context, forceFull bool) (*models.SyncSummary, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// GetUser confirms the server still honors the session token.
	GetUser(ctx context.Context) (*User, error)

	// FetchSession retrieves or refreshes the local backend session. This is
	// the expensive call the session accessor deduplicates.
	FetchSession(ctx context.Context, forceRefresh bool) (*Session, error)

	// SignOut invalidates the local session server-side.
	SignOut(ctx context.Context) error
}
