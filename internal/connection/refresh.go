package connection

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/shared"
)

// RefreshOutcome reports how a token refresh concluded. A rate-limited
// outcome is distinguished from a generic failure because callers must not
// retry it immediately; RetryAfterSeconds carries the server's hint.
type RefreshOutcome struct {
	Connection        *models.Connection
	RateLimited       bool
	RetryAfterSeconds int
}

// RefreshTokens proactively refreshes the vaulted provider tokens with
// bounded exponential backoff. On success the new expiry re-arms the
// refresh timer and marks the session externally validated, letting future
// validation cycles short-circuit.
func (s *Store) RefreshTokens(ctx context.Context) models.OperationResult[RefreshOutcome] {
	s.update(func(st *State) { st.IsLoading = true })

	conn, retryRes, err := shared.Retry(ctx, s.refreshPolicy, func(ctx context.Context) (*models.Connection, error) {
		return s.backend.RefreshTokens(ctx)
	})

	if err != nil {
		outcome := RefreshOutcome{}
		if errors.Is(err, shared.ErrRateLimited) {
			outcome.RateLimited = true
			if after, ok := shared.RetryAfter(err); ok {
				outcome.RetryAfterSeconds = int(after.Seconds())
			}
		}

		s.logger.Warn("token refresh failed", "attempts", retryRes.Attempts, "rate_limited", outcome.RateLimited, "err", err)

		result := models.Fail[RefreshOutcome](err)
		result.Data = outcome
		result.Metadata.Attempts = retryRes.Attempts
		result.Metadata.Duration = retryRes.Elapsed
		s.update(func(st *State) {
			st.IsLoading = false
			st.Err = result.Error
		})
		return result
	}

	now := s.now()
	s.update(func(st *State) {
		st.IsLoading = false
		st.Err = ""
		st.Connection = conn
		st.IsConnected = true
		st.LastCheckedAt = now
		st.HealthStatus = ComputeHealth(conn, now).Status
	})

	// A refresh the server accepted is as strong a proof as a validation
	// round trip; future startup cycles can skip the full procedure.
	if s.validator != nil {
		s.validator.MarkExternallyValidated()
	}

	s.scheduleRefresh(conn)

	result := models.Ok(RefreshOutcome{Connection: conn})
	result.Metadata.Attempts = retryRes.Attempts
	result.Metadata.Duration = retryRes.Elapsed
	return result
}

// scheduleRefresh arms a one-shot timer to fire the proactive refresh at
// (expiry - threshold). A non-positive deadline refreshes immediately in
// the background. Re-arming replaces any previous timer, so repeated
// successful checks never accumulate duplicates.
func (s *Store) scheduleRefresh(conn *models.Connection) {
	delay := conn.ExpiresIn(s.now()) - s.refreshThreshold

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}

	if delay <= 0 {
		s.refreshAt = s.now()
		s.mu.Unlock()
		s.logger.Debug("token near expiry, refreshing now")
		go s.backgroundRefresh()
		return
	}

	s.refreshAt = s.now().Add(delay)
	s.refreshTimer = time.AfterFunc(delay, s.backgroundRefresh)
	s.mu.Unlock()

	s.logger.Debug("refresh scheduled", "in", delay)
}

// RefreshScheduledAt returns the next proactive refresh deadline, if one is
// armed or was just triggered.
func (s *Store) RefreshScheduledAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshAt, !s.refreshAt.IsZero()
}

func (s *Store) stopRefreshTimer() {
	s.mu.Lock()
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	s.refreshAt = time.Time{}
	s.mu.Unlock()
}

func (s *Store) backgroundRefresh() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.RefreshTokens(ctx)
}
