// Package server provides the loopback HTTP surface for the CLI's OAuth
// authorization flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler captures the authorization-code callback: it validates the
// state nonce (CSRF protection) and sends the code through a channel. The
// code is then exchanged through the hosted backend, which vaults the
// provider tokens; the CLI never holds raw secret material.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs the connect command, a temporary HTTP server starts on
// the configured callback port, handles the redirect, and shuts down after
// the code is captured.
package server
