// package repositories implements local persistence for the connection
// subsystem: the key/value marker set, the liked-track cache, and the
// file-backed session store.
package repositories

// Marker keys used by the connection subsystem. The marker set stays small
// on purpose; values are never secret material.
const (
	MarkerSessionPresent = "session_present"
	MarkerOAuthState     = "oauth_state"
	MarkerAccountID      = "account_id"
	MarkerLastSyncAt     = "last_sync_at"
	MarkerLastFullSyncAt = "last_full_sync_at"
)
