// Package storage keeps an append-only audit trail of fired account checks.
//
// It supports two drivers:
//   - "file": JSON Lines next to the configured path
//   - "sqlite": a single SQLite database (pure Go driver)
//
// The trail is write-mostly. It is never used to rebuild pending checks.
package storage
