package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	t.Run("unwraps to ErrRateLimited", func(t *testing.T) {
		err := NewRateLimitError(10)
		if !errors.Is(err, ErrRateLimited) {
			t.Error("expected RateLimitError to unwrap to ErrRateLimited")
		}
	})

	t.Run("carries retry-after hint", func(t *testing.T) {
		err := NewRateLimitError(45)
		after, ok := RetryAfter(err)
		if !ok {
			t.Fatal("expected retry-after hint")
		}
		if after != 45*time.Second {
			t.Errorf("expected 45s, got %s", after)
		}
	})

	t.Run("survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("refresh failed: %w", NewRateLimitError(7))
		after, ok := RetryAfter(err)
		if !ok || after != 7*time.Second {
			t.Errorf("expected wrapped hint 7s, got %s (ok=%v)", after, ok)
		}
	})

	t.Run("defaults non-positive hint to 30s", func(t *testing.T) {
		err := NewRateLimitError(0)
		after, _ := RetryAfter(err)
		if after != 30*time.Second {
			t.Errorf("expected 30s default, got %s", after)
		}
	})

	t.Run("no hint on plain errors", func(t *testing.T) {
		if _, ok := RetryAfter(ErrNetwork); ok {
			t.Error("expected no retry-after hint on ErrNetwork")
		}
	})
}

func TestIsNetworkError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ErrNetwork sentinel", ErrNetwork, true},
		{"wrapped ErrNetwork", fmt.Errorf("request failed: %w", ErrNetwork), true},
		{"ErrTimeout sentinel", ErrTimeout, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net.Error", &net.DNSError{Err: "lookup failed", IsTimeout: true}, true},
		{"connection refused message", errors.New("dial tcp 127.0.0.1:80: connection refused"), true},
		{"fetch failed message", errors.New("TypeError: fetch failed"), true},
		{"rejection", ErrRejected, false},
		{"generic error", errors.New("invalid grant"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNetworkError(tc.err); got != tc.want {
				t.Errorf("IsNetworkError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{0, ErrNetwork},
		{408, ErrNetwork},
		{504, ErrNetwork},
		{429, ErrRateLimited},
		{401, ErrRejected},
		{403, ErrRejected},
		{200, nil},
		{204, nil},
		{500, ErrAPIRequest},
		{404, ErrAPIRequest},
	}

	for _, tc := range cases {
		got := ClassifyStatus(tc.status)
		if !errors.Is(got, tc.want) && !(got == nil && tc.want == nil) {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if ClassifyError(nil) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("network stays network", func(t *testing.T) {
		if got := ClassifyError(fmt.Errorf("call: %w", ErrNetwork)); !errors.Is(got, ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", got)
		}
	})

	t.Run("rejection stays rejection", func(t *testing.T) {
		if got := ClassifyError(fmt.Errorf("call: %w", ErrRejected)); !errors.Is(got, ErrRejected) {
			t.Errorf("expected ErrRejected, got %v", got)
		}
	})

	t.Run("ambiguous errors default to rejection", func(t *testing.T) {
		// An authority that answered has made a definitive statement.
		if got := ClassifyError(errors.New("invalid_grant")); !errors.Is(got, ErrRejected) {
			t.Errorf("expected ErrRejected for ambiguous error, got %v", got)
		}
	})
}
