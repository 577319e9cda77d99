package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likedsync/internal/models"
	"github.com/desertthunder/likedsync/internal/repositories"
	"github.com/desertthunder/likedsync/internal/services"
	"github.com/desertthunder/likedsync/internal/shared"
)

// Phase tracks the validator's state machine. Each validation cycle runs
// idle → validating → one of the terminal phases; the validator itself is
// re-entrant across app restarts.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseValidating       Phase = "validating"
	PhaseValid            Phase = "valid"
	PhaseInvalidCleared   Phase = "invalid-cleared"
	PhaseInvalidPreserved Phase = "invalid-preserved"
)

// ValidatorOptions bound each validation cycle. Zero values pick up the
// defaults.
type ValidatorOptions struct {
	FetchTimeout     time.Duration // Per session fetch (default 8s)
	RoundTripTimeout time.Duration // Per server confirmation call (default 8s)
	GlobalTimeout    time.Duration // Whole cycle budget (default 20s)
	MaxRetries       int           // Retries after the first attempt (default 2)
	RetryDelay       time.Duration // Fixed delay between attempts (default 1s)
}

func (o ValidatorOptions) normalize() ValidatorOptions {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 8 * time.Second
	}
	if o.RoundTripTimeout <= 0 {
		o.RoundTripTimeout = 8 * time.Second
	}
	if o.GlobalTimeout <= 0 {
		o.GlobalTimeout = 20 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	return o
}

// Validator verifies at startup that a cached session is still honored by
// the backend. The design bias runs one way: a false sign-out on a slow
// network costs more than a short delay detecting a genuinely revoked
// token, so every ambiguous or timed-out case resolves as "preserve".
type Validator struct {
	accessor *Accessor
	backend  services.Backend
	markers  *repositories.MarkerRepository
	sessions services.SessionStore
	logger   *log.Logger
	opts     ValidatorOptions

	mu       sync.Mutex
	phase    Phase
	complete bool
}

// NewValidator creates a Validator. markers and sessions are the local
// credential stores purged on unambiguous rejection.
func NewValidator(accessor *Accessor, backend services.Backend, markers *repositories.MarkerRepository, sessions services.SessionStore, logger *log.Logger, opts ValidatorOptions) *Validator {
	return &Validator{
		accessor: accessor,
		backend:  backend,
		markers:  markers,
		sessions: sessions,
		logger:   logger,
		opts:     opts.normalize(),
		phase:    PhaseIdle,
	}
}

// Phase returns the validator's current state.
func (v *Validator) Phase() Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// IsComplete reports whether a validation cycle has already concluded.
func (v *Validator) IsComplete() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.complete
}

// MarkExternallyValidated records that another code path (a successful token
// refresh) has already proven the session good, so future cycles can
// short-circuit without re-running the whole procedure.
func (v *Validator) MarkExternallyValidated() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.complete = true
	v.phase = PhaseValid
}

func (v *Validator) setPhase(p Phase) {
	v.mu.Lock()
	v.phase = p
	if p != PhaseValidating && p != PhaseIdle {
		v.complete = true
	}
	v.mu.Unlock()
}

// ValidateOnStartup runs one validation cycle. It never returns an error;
// every outcome, including internal failures, resolves to a
// [models.ValidationResult] value.
func (v *Validator) ValidateOnStartup(ctx context.Context) models.ValidationResult {
	start := time.Now()

	if v.IsComplete() {
		return models.ValidationResult{
			IsValid: true,
			Reason:  "already validated",
			Elapsed: time.Since(start),
		}
	}

	// Trivial case: nothing cached means nothing to validate and nothing
	// to clear. No network call is made.
	hasMarker, err := v.markers.Has(repositories.MarkerSessionPresent)
	if err != nil {
		v.logger.Warn("marker check failed, preserving session", "err", err)
		v.setPhase(PhaseInvalidPreserved)
		return models.ValidationResult{
			IsValid: true,
			Reason:  fmt.Sprintf("marker store unavailable: %v", err),
			Elapsed: time.Since(start),
		}
	}
	if !hasMarker {
		v.setPhase(PhaseValid)
		return models.ValidationResult{
			IsValid: true,
			Reason:  "no cached tokens",
			Elapsed: time.Since(start),
		}
	}

	v.setPhase(PhaseValidating)

	globalCtx, cancel := context.WithTimeout(ctx, v.opts.GlobalTimeout)
	defer cancel()

	retries := 0
	for attempt := 0; ; attempt++ {
		result, retryable := v.attempt(globalCtx, start, attempt)
		if !retryable {
			result.RetriesUsed = retries
			result.Elapsed = time.Since(start)
			return result
		}

		if attempt >= v.opts.MaxRetries {
			// Retries exhausted on purely transient failures: preserve.
			v.setPhase(PhaseInvalidPreserved)
			return models.ValidationResult{
				IsValid:     true,
				Reason:      "network errors exhausted retries, session preserved",
				RetriesUsed: retries,
				Elapsed:     time.Since(start),
			}
		}

		select {
		case <-time.After(v.opts.RetryDelay):
			retries++
		case <-globalCtx.Done():
			// The global budget fired before retries exhausted. Resolve as
			// preserved rather than signing the user out over a slow network.
			v.setPhase(PhaseInvalidPreserved)
			return models.ValidationResult{
				IsValid:     true,
				Reason:      "validation timed out, session preserved",
				RetriesUsed: retries,
				Elapsed:     time.Since(start),
			}
		}
	}
}

// attempt runs one fetch + confirmation pass. The bool return reports
// whether the failure is retryable; terminal outcomes come back as a
// completed result.
func (v *Validator) attempt(ctx context.Context, start time.Time, attempt int) (models.ValidationResult, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, v.opts.FetchTimeout)
	session, err := v.accessor.GetSession(fetchCtx, false, fmt.Sprintf("startup-validator-%d", attempt))
	cancel()

	if err != nil {
		if shared.IsNetworkError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			v.logger.Debug("session fetch failed, will retry", "attempt", attempt, "err", err)
			return models.ValidationResult{}, true
		}
		if errors.Is(err, shared.ErrRejected) || errors.Is(err, shared.ErrNoRefreshToken) {
			// The authority said no, or the session is expired with no way
			// to revive it: the cached session is garbage.
			return v.clear(fmt.Sprintf("session fetch rejected: %v", err)), false
		}
		// A local failure (corrupt session file, storage error) proves
		// nothing about the credential. Preserve; a later cycle retries.
		v.logger.Warn("session fetch failed locally, preserving session", "err", err)
		v.setPhase(PhaseInvalidPreserved)
		return models.ValidationResult{
			IsValid: true,
			Reason:  fmt.Sprintf("session store unavailable: %v", err),
		}, false
	}

	if session == nil || session.IsExpired(time.Now()) {
		reason := "no session behind marker"
		if session != nil {
			reason = "cached session expired"
		}
		return v.clear(reason), false
	}

	// The cached session looks fine locally; confirm the server still
	// honors the token.
	rtCtx, cancel := context.WithTimeout(ctx, v.opts.RoundTripTimeout)
	_, err = v.backend.GetUser(rtCtx)
	cancel()

	if err != nil {
		switch shared.ClassifyError(err) {
		case shared.ErrNetwork:
			v.logger.Debug("confirmation round trip failed, will retry", "attempt", attempt, "err", err)
			return models.ValidationResult{}, true
		default:
			return v.clear(fmt.Sprintf("server rejected token: %v", err)), false
		}
	}

	v.setPhase(PhaseValid)
	return models.ValidationResult{
		IsValid: true,
		Reason:  "server confirmed token",
		Elapsed: time.Since(start),
	}, false
}

// clear purges local credential markers and signs out locally. Only an
// unambiguous rejection reaches this path.
func (v *Validator) clear(reason string) models.ValidationResult {
	v.logger.Info("clearing local session", "reason", reason)

	for _, key := range []string{repositories.MarkerSessionPresent, repositories.MarkerOAuthState, repositories.MarkerAccountID} {
		if err := v.markers.Clear(key); err != nil {
			v.logger.Warn("failed to clear marker", "key", key, "err", err)
		}
	}
	if v.sessions != nil {
		if err := v.sessions.Clear(); err != nil {
			v.logger.Warn("failed to clear session store", "err", err)
		}
	}
	v.accessor.Invalidate()

	v.setPhase(PhaseInvalidCleared)
	return models.ValidationResult{
		IsValid:    false,
		WasCleared: true,
		Reason:     reason,
	}
}
