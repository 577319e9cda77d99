package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/likedsync/internal/services"
	"github.com/desertthunder/likedsync/internal/shared"
	tu "github.com/desertthunder/likedsync/internal/testing"
)

func newClient(t *testing.T, handler http.Handler, session *services.Session) (*services.BackendClient, *tu.MemorySessionStore) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := &tu.MemorySessionStore{Session: session}
	client, err := services.NewBackendClient(srv.URL, "anon-key", srv.Client(), store)
	if err != nil {
		t.Fatalf("failed to create backend client: %v", err)
	}
	return client, store
}

func validSession() *services.Session {
	return &services.Session{
		Token:        "bearer-token",
		RefreshToken: "refresh-token",
		UserID:       "user",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestNewBackendClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := services.NewBackendClient("", "anon", nil, nil)
		if !errors.Is(err, shared.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
	})
}

func TestGetConnection(t *testing.T) {
	t.Run("returns connection", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/connection" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer bearer-token" {
				t.Errorf("unexpected authorization header %q", got)
			}
			if got := r.Header.Get("apikey"); got != "anon-key" {
				t.Errorf("unexpected apikey header %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":                "conn1",
				"account_id":        "spotify-user",
				"access_token_ref":  "[REDACTED]",
				"refresh_token_ref": "[REDACTED]",
				"expires_at":        time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		})

		client, _ := newClient(t, handler, validSession())

		conn, err := client.GetConnection(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if conn == nil || conn.AccountID != "spotify-user" {
			t.Errorf("unexpected connection: %+v", conn)
		}
	})

	t.Run("404 means validly disconnected", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})

		client, _ := newClient(t, handler, validSession())

		conn, err := client.GetConnection(context.Background())
		if err != nil {
			t.Fatalf("absence must not be an error, got %v", err)
		}
		if conn != nil {
			t.Errorf("expected nil connection, got %+v", conn)
		}
	})

	t.Run("401 is a rejection", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
		})

		client, _ := newClient(t, handler, validSession())

		_, err := client.GetConnection(context.Background())
		if !errors.Is(err, shared.ErrRejected) {
			t.Errorf("expected ErrRejected, got %v", err)
		}
	})

	t.Run("504 is a network error", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGatewayTimeout)
		})

		client, _ := newClient(t, handler, validSession())

		_, err := client.GetConnection(context.Background())
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("missing session is not authenticated", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("request should not reach the backend without a session")
		})

		client, _ := newClient(t, handler, nil)

		_, err := client.GetConnection(context.Background())
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestRefreshTokens(t *testing.T) {
	t.Run("rate limit carries the body hint", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"message": "slow down", "retry_after_seconds": 42})
		})

		client, _ := newClient(t, handler, validSession())

		_, err := client.RefreshTokens(context.Background())
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		after, ok := shared.RetryAfter(err)
		if !ok || after != 42*time.Second {
			t.Errorf("expected 42s hint, got %s (ok=%v)", after, ok)
		}
	})

	t.Run("rate limit falls back to the header hint", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "17")
			w.WriteHeader(http.StatusTooManyRequests)
		})

		client, _ := newClient(t, handler, validSession())

		_, err := client.RefreshTokens(context.Background())
		after, ok := shared.RetryAfter(err)
		if !ok || after != 17*time.Second {
			t.Errorf("expected 17s hint from header, got %s (ok=%v)", after, ok)
		}
	})
}

func TestExchangeCode(t *testing.T) {
	t.Run("requires a code", func(t *testing.T) {
		client, _ := newClient(t, http.NewServeMux(), validSession())
		_, err := client.ExchangeCode(context.Background(), "")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("posts the code and validates the result", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["code"] != "auth-code" {
				t.Errorf("expected code auth-code, got %q", payload["code"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"account_id":        "spotify-user",
				"access_token_ref":  "[REDACTED]",
				"refresh_token_ref": "[REDACTED]",
				"expires_at":        time.Now().Add(time.Hour).Format(time.RFC3339),
			})
		})

		client, _ := newClient(t, handler, validSession())

		conn, err := client.ExchangeCode(context.Background(), "auth-code")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if conn.AccountID != "spotify-user" {
			t.Errorf("unexpected connection: %+v", conn)
		}
	})
}

func TestDeleteConnection(t *testing.T) {
	t.Run("missing connection is a no-op", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})

		client, _ := newClient(t, handler, validSession())

		if err := client.DeleteConnection(context.Background()); err != nil {
			t.Errorf("deleting a missing connection should not fail: %v", err)
		}
	})
}

func TestFetchSession(t *testing.T) {
	t.Run("unexpired session served without a round trip", func(t *testing.T) {
		calls := 0
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ })

		client, _ := newClient(t, handler, validSession())

		session, err := client.FetchSession(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session == nil || session.Token != "bearer-token" {
			t.Errorf("unexpected session: %+v", session)
		}
		if calls != 0 {
			t.Errorf("expected no backend calls, got %d", calls)
		}
	})

	t.Run("no stored session means signed out", func(t *testing.T) {
		client, _ := newClient(t, http.NewServeMux(), nil)

		session, err := client.FetchSession(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session != nil {
			t.Errorf("expected nil session, got %+v", session)
		}
	})

	t.Run("forced refresh persists the new session", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/auth/refresh" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			if payload["refresh_token"] != "refresh-token" {
				t.Errorf("expected refresh token, got %q", payload["refresh_token"])
			}
			json.NewEncoder(w).Encode(services.Session{
				Token:        "new-token",
				RefreshToken: "new-refresh",
				UserID:       "user",
				ExpiresAt:    time.Now().Add(time.Hour),
			})
		})

		client, store := newClient(t, handler, validSession())

		session, err := client.FetchSession(context.Background(), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.Token != "new-token" {
			t.Errorf("expected refreshed token, got %q", session.Token)
		}
		if store.Session == nil || store.Session.Token != "new-token" {
			t.Error("expected the refreshed session to be persisted")
		}
	})

	t.Run("expired session without refresh token", func(t *testing.T) {
		expired := validSession()
		expired.RefreshToken = ""
		expired.ExpiresAt = time.Now().Add(-time.Minute)

		client, _ := newClient(t, http.NewServeMux(), expired)

		_, err := client.FetchSession(context.Background(), false)
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestSignOut(t *testing.T) {
	t.Run("clears the local session even when the server fails", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		client, store := newClient(t, handler, validSession())

		err := client.SignOut(context.Background())
		if err == nil {
			t.Error("expected the server error to surface")
		}
		if !store.Cleared {
			t.Error("expected the local session to be cleared regardless")
		}
	})

	t.Run("signed out already is a no-op", func(t *testing.T) {
		client, _ := newClient(t, http.NewServeMux(), nil)
		if err := client.SignOut(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
