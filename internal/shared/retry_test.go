package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{10, 30 * time.Second},
	}

	for _, tc := range cases {
		if got := policy.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestRetry(t *testing.T) {
	fast := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		out, res, err := Retry(context.Background(), fast, func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "ok" || calls != 1 || res.Attempts != 1 {
			t.Errorf("expected one successful attempt, got out=%q calls=%d attempts=%d", out, calls, res.Attempts)
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		out, res, err := Retry(context.Background(), fast, func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, fmt.Errorf("flaky: %w", ErrNetwork)
			}
			return 42, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != 42 || res.Attempts != 3 {
			t.Errorf("expected success on third attempt, got out=%d attempts=%d", out, res.Attempts)
		}
	})

	t.Run("exhausts retries", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		_, res, err := Retry(context.Background(), fast, func(ctx context.Context) (int, error) {
			calls++
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected final error, got %v", err)
		}
		if calls != 4 || res.Attempts != 4 {
			t.Errorf("expected 1 + 3 retries, got calls=%d attempts=%d", calls, res.Attempts)
		}
	})

	t.Run("never retries rejection", func(t *testing.T) {
		calls := 0
		_, res, err := Retry(context.Background(), fast, func(ctx context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("denied: %w", ErrRejected)
		})
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("expected ErrRejected, got %v", err)
		}
		if calls != 1 || res.Attempts != 1 {
			t.Errorf("rejection must not retry, got calls=%d", calls)
		}
	})

	t.Run("never retries missing configuration", func(t *testing.T) {
		calls := 0
		_, _, err := Retry(context.Background(), fast, func(ctx context.Context) (int, error) {
			calls++
			return 0, ErrNotConfigured
		})
		if !errors.Is(err, ErrNotConfigured) || calls != 1 {
			t.Errorf("expected single ErrNotConfigured attempt, got calls=%d err=%v", calls, err)
		}
	})

	t.Run("honors retry-after hint", func(t *testing.T) {
		calls := 0
		start := time.Now()
		_, _, err := Retry(context.Background(), fast, func(ctx context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, &RateLimitError{RetryAfter: 20 * time.Millisecond}
			}
			return 1, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("expected the hint to replace the backoff delay, waited only %s", elapsed)
		}
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		slow := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 2}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, _, err := Retry(ctx, slow, func(ctx context.Context) (int, error) {
			return 0, ErrNetwork
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context error, got %v", err)
		}
	})
}
