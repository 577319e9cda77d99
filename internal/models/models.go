// package models defines the data model for the liked-songs sync service
package models

import (
	"fmt"
	"strings"
	"time"
)

// RedactedPlaceholder is the only value permitted in client-side token
// fields. The raw secret never leaves the backend's vault.
const RedactedPlaceholder = "[REDACTED]"

// Connection represents the user's stored third-party OAuth connection as
// returned by the backend. It is never constructed client-side except as an
// explicit optimistic placeholder ahead of server confirmation.
type Connection struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	DisplayName     string    `json:"display_name,omitempty"`
	AccessTokenRef  string    `json:"access_token_ref"`
	RefreshTokenRef string    `json:"refresh_token_ref"`
	ExpiresAt       time.Time `json:"expires_at"`
	Scope           string    `json:"scope"`
	Optimistic      bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks the connection's structural invariants. Access and refresh
// token references are provisioned together; one without the other means the
// record is corrupt.
func (c *Connection) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("connection missing account id")
	}
	if c.AccessTokenRef != "" && c.RefreshTokenRef == "" {
		return fmt.Errorf("access token reference present without refresh token reference")
	}
	return nil
}

// ExpiresIn returns the remaining lifetime of the access token relative to now.
func (c *Connection) ExpiresIn(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// IsExpired reports whether the access token's expiry is in the past.
func (c *Connection) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// NewOptimisticConnection builds the placeholder connection used to mark the
// state connected immediately after an OAuth redirect, ahead of the next
// authoritative check.
func NewOptimisticConnection(accountID, displayName string, now time.Time) *Connection {
	return &Connection{
		AccountID:       accountID,
		DisplayName:     displayName,
		AccessTokenRef:  RedactedPlaceholder,
		RefreshTokenRef: RedactedPlaceholder,
		ExpiresAt:       now.Add(time.Hour),
		Optimistic:      true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ValidationResult is produced once per startup validation cycle and never
// persisted.
type ValidationResult struct {
	IsValid     bool
	WasCleared  bool
	Reason      string
	Elapsed     time.Duration
	RetriesUsed int
}

// OperationMetadata carries bookkeeping about how an operation resolved.
type OperationMetadata struct {
	Attempts        int           `json:"attempts,omitempty"`
	Duration        time.Duration `json:"duration,omitempty"`
	ServedFromCache bool          `json:"served_from_cache,omitempty"`
}

// OperationResult is the uniform envelope returned by every asynchronous
// store operation. Failures are values; store methods never panic and never
// propagate errors to subscribers.
type OperationResult[T any] struct {
	Success  bool              `json:"success"`
	Data     T                 `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata OperationMetadata `json:"metadata"`
}

// Ok builds a successful OperationResult carrying data.
func Ok[T any](data T) OperationResult[T] {
	return OperationResult[T]{Success: true, Data: data}
}

// Fail builds a failed OperationResult from an error.
func Fail[T any](err error) OperationResult[T] {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return OperationResult[T]{Success: false, Error: msg}
}

// HealthStatus classifies the connection's health from token expiry and
// token reference presence.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
	HealthUnknown HealthStatus = "unknown"
)

// HealthReport is the result of a connection health computation.
type HealthReport struct {
	Status           HealthStatus `json:"status"`
	ExpiresInMinutes int          `json:"expires_in_minutes"`
}

// RiskLevel buckets the security classifier's bounded risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// SecurityReport is the result of a read-only token storage inspection.
type SecurityReport struct {
	IsValid   bool      `json:"is_valid"`
	Issues    []string  `json:"issues"`
	RiskLevel RiskLevel `json:"risk_level"`
	Score     int       `json:"score"`
}

// Track represents a liked song cached in the local collection.
type Track struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Album    string    `json:"album,omitempty"`
	ISRC     string    `json:"isrc,omitempty"`
	AddedAt  time.Time `json:"added_at"`
	SyncedAt time.Time `json:"synced_at"`
}

// Validate checks required track fields before persistence.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("track missing id")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track missing title")
	}
	return nil
}

// SyncSummary reports the result of one liked-songs sync pass.
type SyncSummary struct {
	TracksProcessed int           `json:"tracks_processed"`
	NewTracksAdded  int           `json:"new_tracks_added"`
	FullSync        bool          `json:"full_sync"`
	Duration        time.Duration `json:"duration"`
	SyncedAt        time.Time     `json:"synced_at"`
}
