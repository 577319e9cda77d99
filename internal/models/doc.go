// Package models defines domain values for the liked-songs sync service.
//
// The package contains three categories of types:
//
// 1. Connection lifecycle values:
//   - [Connection] : The stored third-party OAuth connection, token material
//     represented only by redacted placeholders and vault reference ids
//   - [ValidationResult] : Outcome of one startup validation cycle
//   - [OperationResult] : Uniform success/data/error/metadata envelope
//     returned by every asynchronous store operation
//
// 2. Health & security classification:
//   - [HealthStatus], [HealthReport] : Expiry-derived connection health
//   - [SecurityReport] : Read-only risk classification of stored token state
//
// 3. Sync values:
//   - [Track] : A liked song cached locally
//   - [SyncSummary] : Result of one liked-songs sync pass
//
// None of these types carry raw secret material; secrets live behind the
// backend's vault and appear client-side only as reference ids.
package models
