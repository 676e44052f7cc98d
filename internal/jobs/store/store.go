// Package store persists the domain_update_jobs queue.
package store

import "errors"

// ErrNotFound keeps storage-specific 404s consistent across the in-memory and
// PostgreSQL implementations.
var ErrNotFound = errors.New("record not found")
