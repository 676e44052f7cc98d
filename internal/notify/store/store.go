// Package store persists notifications, per-domain notification preferences,
// and per-user delivery configuration.
package store

import "errors"

// ErrNotFound keeps storage-specific 404s consistent across the in-memory and
// PostgreSQL implementations.
var ErrNotFound = errors.New("record not found")
