// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/services"
)

// MockBackend is a scriptable test double for [services.Backend]. Each
// operation delegates to the corresponding func field when set and falls
// back to a benign default otherwise. Call counters are atomic so tests can
// assert round-trip counts under concurrency.
type MockBackend struct {
	ExchangeCodeFn   func(ctx context.Context, code string) (*models.Connection, error)
	GetConnectionFn  func(ctx context.Context) (*models.Connection, error)
	DeleteFn         func(ctx context.Context) error
	RefreshFn        func(ctx context.Context) (*models.Connection, error)
	SyncFn           func(ctx context.Context, forceFull bool) (*models.SyncSummary, error)
	HealthFn         func(ctx context.Context) error
	GetUserFn        func(ctx context.Context) (*services.User, error)
	FetchSessionFn   func(ctx context.Context, forceRefresh bool) (*services.Session, error)
	SignOutFn        func(ctx context.Context) error

	GetConnectionCalls int64
	GetUserCalls       int64
	FetchSessionCalls  int64
	RefreshCalls       int64
	SyncCalls          int64
	SignOutCalls       int64
}

func (m *MockBackend) ExchangeCode(ctx context.Context, code string) (*models.Connection, error) {
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, code)
	}
	return &models.Connection{AccountID: "acct", AccessTokenRef: models.RedactedPlaceholder, RefreshTokenRef: models.RedactedPlaceholder, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockBackend) GetConnection(ctx context.Context) (*models.Connection, error) {
	atomic.AddInt64(&m.GetConnectionCalls, 1)
	if m.GetConnectionFn != nil {
		return m.GetConnectionFn(ctx)
	}
	return nil, nil
}

func (m *MockBackend) DeleteConnection(ctx context.Context) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx)
	}
	return nil
}

func (m *MockBackend) RefreshTokens(ctx context.Context) (*models.Connection, error) {
	atomic.AddInt64(&m.RefreshCalls, 1)
	if m.RefreshFn != nil {
		return m.RefreshFn(ctx)
	}
	return &models.Connection{AccountID: "acct", AccessTokenRef: models.RedactedPlaceholder, RefreshTokenRef: models.RedactedPlaceholder, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockBackend) SyncLikedSongs(ctx context.Context, forceFull bool) (*models.SyncSummary, error) {
	atomic.AddInt64(&m.SyncCalls, 1)
	if m.SyncFn != nil {
		return m.SyncFn(ctx, forceFull)
	}
	return &models.SyncSummary{}, nil
}

func (m *MockBackend) HealthCheck(ctx context.Context) error {
	if m.HealthFn != nil {
		return m.HealthFn(ctx)
	}
	return nil
}

func (m *MockBackend) GetUser(ctx context.Context) (*services.User, error) {
	atomic.AddInt64(&m.GetUserCalls, 1)
	if m.GetUserFn != nil {
		return m.GetUserFn(ctx)
	}
	return &services.User{ID: "user"}, nil
}

func (m *MockBackend) FetchSession(ctx context.Context, forceRefresh bool) (*services.Session, error) {
	atomic.AddInt64(&m.FetchSessionCalls, 1)
	if m.FetchSessionFn != nil {
		return m.FetchSessionFn(ctx, forceRefresh)
	}
	return &services.Session{Token: "token", UserID: "user", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockBackend) SignOut(ctx context.Context) error {
	atomic.AddInt64(&m.SignOutCalls, 1)
	if m.SignOutFn != nil {
		return m.SignOutFn(ctx)
	}
	return nil
}

// MemorySessionStore is an in-memory [services.SessionStore].
type MemorySessionStore struct {
	Session *services.Session
	Cleared bool
}

func (m *MemorySessionStore) Load() (*services.Session, error) {
	return m.Session, nil
}

func (m *MemorySessionStore) Save(session *services.Session) error {
	m.Session = session
	return nil
}

func (m *MemorySessionStore) Clear() error {
	m.Session = nil
	m.Cleared = true
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Discard is an io.Writer for silencing loggers in tests.
var Discard io.Writer = io.Discard

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
