// package session implements local session access and startup validation
// for the hosted backend connection.
//
// The Accessor is the single source of truth for "am I logged in locally";
// the Validator decides at startup whether a cached session is still good,
// purging it only on unambiguous rejection.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likedsync/internal/services"
	"golang.org/x/sync/singleflight"
)

// memoTTL is how long a non-forced GetSession call may be served from the
// last fetched session without touching the backend. The underlying fetch
// is rate-limited server-side, so bursts from multiple callers must not fan
// out into separate round trips.
const memoTTL = 2 * time.Second

// Accessor wraps the backend's session fetch, deduplicating concurrent
// callers and memoizing the result for a short window.
type Accessor struct {
	backend services.Backend
	logger  *log.Logger

	group singleflight.Group

	mu       sync.Mutex
	cached   *services.Session
	fetched  time.Time
	fetchErr error
}

// NewAccessor creates an Accessor over the given backend.
func NewAccessor(backend services.Backend, logger *log.Logger) *Accessor {
	return &Accessor{backend: backend, logger: logger}
}

// GetSession returns the current local session, or (nil, error) when the
// underlying fetch fails. Concurrent calls made within a short window
// collapse into one underlying fetch; callerTag only feeds logging so
// overlapping callers can be told apart.
//
// A (nil, nil) return means no session exists locally, which is a valid
// signed-out state rather than a failure.
func (a *Accessor) GetSession(ctx context.Context, forceRefresh bool, callerTag string) (*services.Session, error) {
	if !forceRefresh {
		a.mu.Lock()
		if a.fetchErr == nil && !a.fetched.IsZero() && time.Since(a.fetched) < memoTTL {
			cached := a.cached
			a.mu.Unlock()
			return cached, nil
		}
		a.mu.Unlock()
	}

	key := "session"
	if forceRefresh {
		key = "session-force"
	}

	result, err, shared := a.group.Do(key, func() (any, error) {
		session, err := a.backend.FetchSession(ctx, forceRefresh)
		a.mu.Lock()
		a.cached = session
		a.fetched = time.Now()
		a.fetchErr = err
		a.mu.Unlock()
		return session, err
	})

	if a.logger != nil {
		a.logger.Debug("session fetch", "caller", callerTag, "forced", forceRefresh, "coalesced", shared, "err", err)
	}

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*services.Session), nil
}

// Invalidate drops the memoized session so the next call hits the backend.
func (a *Accessor) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.fetched = time.Time{}
	a.fetchErr = nil
	a.mu.Unlock()
}
