package server

import (
	"fmt"
	"net/http"
	"sync"
)

// successPage is shown in the browser once the redirect lands; the user is
// told to return to the terminal while the exchange finishes there.
const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .card { text-align: center; background: white; padding: 2rem;
                border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`

// OAuthResult is the outcome of one authorization flow. The handler only
// captures the authorization code; the code-for-token exchange runs through
// the hosted backend, which owns the token vault.
type OAuthResult struct {
	Code string
	err  error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the authorization-code redirect. One handler serves
// exactly one flow: the first callback settles the result and replays are
// refused.
type OAuthHandler struct {
	nonce   string
	results chan OAuthResult
	settle  sync.Once

	mu      sync.Mutex
	claimed bool
}

// NewOAuthHandler binds a handler to the flow's state nonce. The nonce is
// minted fresh per flow for CSRF protection and cleared once the flow
// completes.
func NewOAuthHandler(nonce string) *OAuthHandler {
	return &OAuthHandler{
		nonce:   nonce,
		results: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the state nonce, pulls the authorization code (or the
// provider's error) out of the query string, and settles the result.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claim() {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if query.Get("state") != h.nonce {
		h.Send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.Send(OAuthResult{err: fmt.Errorf("authorization failed: %s - %s",
			query.Get("error"), query.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(OAuthResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// claim marks the callback as consumed, returning false on replays.
func (h *OAuthHandler) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.claimed {
		return false
	}
	h.claimed = true
	return true
}

// Send settles the flow. Only the first call delivers; the channel is closed
// afterwards so waiters never block.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.settle.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result returns the channel the settled flow outcome arrives on. It receives
// exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}
