package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestOAuthHandler(t *testing.T) {
	t.Run("captures the authorization code", func(t *testing.T) {
		handler := NewOAuthHandler("nonce")

		req := httptest.NewRequest(http.MethodGet, "/callback?code=auth-code&state=nonce", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected the success page")
		}

		select {
		case result := <-handler.Result():
			if result.Error() != nil {
				t.Fatalf("unexpected error: %v", result.Error())
			}
			if result.Code != "auth-code" {
				t.Errorf("expected auth-code, got %q", result.Code)
			}
		case <-time.After(time.Second):
			t.Fatal("no result received")
		}
	})

	t.Run("rejects a mismatched state nonce", func(t *testing.T) {
		handler := NewOAuthHandler("nonce")

		req := httptest.NewRequest(http.MethodGet, "/callback?code=auth-code&state=forged", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil {
			t.Error("expected a state mismatch error")
		}
	})

	t.Run("surfaces provider denial", func(t *testing.T) {
		handler := NewOAuthHandler("nonce")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=nonce&error=access_denied&error_description=user+denied", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected the denial to surface, got %v", result.Error())
		}
	})

	t.Run("second callback is refused", func(t *testing.T) {
		handler := NewOAuthHandler("nonce")

		first := httptest.NewRequest(http.MethodGet, "/callback?code=auth-code&state=nonce", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest(http.MethodGet, "/callback?code=other-code&state=nonce", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Code != "auth-code" {
			t.Errorf("expected the first code to win, got %q", result.Code)
		}
	})

	t.Run("result channel delivers exactly once", func(t *testing.T) {
		handler := NewOAuthHandler("nonce")
		handler.Send(OAuthResult{Code: "one"})
		handler.Send(OAuthResult{Code: "two"})

		first := <-handler.Result()
		if first.Code != "one" {
			t.Errorf("expected the first send, got %q", first.Code)
		}
		if _, open := <-handler.Result(); open {
			t.Error("expected the channel to be closed after delivery")
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("routes a registered handler", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(NewOAuthHandler("nonce"))

		req := httptest.NewRequest(http.MethodGet, "/callback?code=c&state=nonce", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("method mismatch on Handle", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/ping", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware wraps in order", func(t *testing.T) {
		router := NewBasicRouter()

		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		router.Use(mw("outer"), mw("inner"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)

		if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
			t.Errorf("unexpected middleware order: %v", order)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(io.Writer(&buf), log.Options{Level: log.DebugLevel})

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "/callback") {
		t.Errorf("expected the path to be logged, got %q", buf.String())
	}
}
