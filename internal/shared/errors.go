package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrNotConfigured   = fmt.Errorf("missing required configuration")
	ErrMissingArgument = fmt.Errorf("missing required argument")

	// Authentication & session errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Connection failure taxonomy.
	//
	// ErrNetwork covers transport-level failures where no definitive answer
	// from the authority was received; it is always retryable. ErrRejected is
	// a definitive "this credential is invalid" and is never retried.
	ErrNetwork           = fmt.Errorf("network error")
	ErrRejected          = fmt.Errorf("credential rejected")
	ErrRateLimited       = fmt.Errorf("rate limited")
	ErrAlreadyInProgress = fmt.Errorf("operation already in progress")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoConnection       = fmt.Errorf("no connection exists")
)

// RateLimitError carries the server's backoff hint alongside [ErrRateLimited].
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// NewRateLimitError creates a [RateLimitError] from a retry-after hint in seconds.
func NewRateLimitError(retryAfterSeconds int) *RateLimitError {
	if retryAfterSeconds <= 0 {
		retryAfterSeconds = 30
	}
	return &RateLimitError{RetryAfter: time.Duration(retryAfterSeconds) * time.Second}
}

// RetryAfter extracts the backoff hint from an error chain, if present.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// transport failure signatures seen from the stdlib HTTP stack and from
// fetch-style gateways
var networkSignatures = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"failed to fetch",
	"fetch failed",
}

// IsNetworkError reports whether err looks like a transport-level failure
// rather than a definitive rejection from the authority.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range networkSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// ClassifyStatus maps an HTTP status code to the connection failure taxonomy.
// Status 0 means no response was received at all.
func ClassifyStatus(status int) error {
	switch {
	case status == 0, status == 408, status == 504:
		return ErrNetwork
	case status == 429:
		return ErrRateLimited
	case status == 401, status == 403:
		return ErrRejected
	case status >= 200 && status < 300:
		return nil
	default:
		return ErrAPIRequest
	}
}

// ClassifyError resolves an ambiguous failure into either [ErrNetwork] or
// [ErrRejected]. Anything that is not recognizably a transport failure is
// treated as a rejection: an authority that answered at all has made a
// definitive statement about the credential.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRejected) {
		return ErrRejected
	}
	if IsNetworkError(err) {
		return ErrNetwork
	}
	return ErrRejected
}
