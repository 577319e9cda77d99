package shared

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls the backoff schedule for [Retry].
type RetryPolicy struct {
	MaxRetries int           // Attempts beyond the first (default 3)
	BaseDelay  time.Duration // Delay before the first retry (default 1s)
	MaxDelay   time.Duration // Ceiling for any single delay (default 30s)
	Multiplier float64       // Exponential growth factor (default 2)
}

// DefaultRetryPolicy returns the policy used for token refresh operations.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	return p
}

// Delay computes the backoff delay for the given zero-based attempt number:
// min(MaxDelay, BaseDelay * Multiplier^attempt).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RetryResult reports how a [Retry] call concluded.
type RetryResult struct {
	Attempts int
	Elapsed  time.Duration
}

// Retry runs op until it succeeds, exhausts the policy, or hits a terminal
// error. Rejections ([ErrRejected]) and missing configuration are never
// retried. A rate-limited failure honors the server's retry-after hint in
// place of the computed backoff delay.
//
// The operation's error is returned as a value together with attempt
// accounting; Retry itself only fails with the final operation error or the
// context's error.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, RetryResult, error) {
	var zero T
	policy = policy.normalize()
	start := time.Now()
	res := RetryResult{}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		res.Attempts = attempt + 1

		out, err := op(ctx)
		if err == nil {
			res.Elapsed = time.Since(start)
			return out, res, nil
		}
		lastErr = err

		if errors.Is(err, ErrRejected) || errors.Is(err, ErrNotConfigured) {
			break
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := policy.Delay(attempt)
		if after, ok := RetryAfter(err); ok {
			delay = after
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return zero, res, ctx.Err()
		}
	}

	res.Elapsed = time.Since(start)
	return zero, res, lastErr
}
