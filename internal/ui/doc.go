// Package ui implements the live connection status view using bubbletea's
// Elm architecture.
//
// The [Model] subscribes to the connection state store and re-renders on
// every state transition, making it a thin UI collaborator over the store's
// pub/sub surface: it never mutates connection state directly, only submits
// operations through the store's public methods.
//
// Keyboard bindings: c (check), s (sync), r (refresh tokens), q (quit).
// Store notifications flow through a channel into the standard
// Init/Update/View loop, so renders stay ordered with state transitions.
package ui
