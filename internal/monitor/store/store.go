// Package store persists the monitored domain entity graph. It exposes an
// in-memory implementation for tests and a PostgreSQL implementation for
// production; services declare the subset of methods they need as local
// interfaces.
package store

import "errors"

// ErrNotFound keeps storage-specific 404s consistent across the in-memory and
// PostgreSQL implementations.
var ErrNotFound = errors.New("record not found")

// Whois columns the detector may upsert individually. Anything else is a
// programming error, not user input.
var whoisColumns = map[string]bool{
	"name":         true,
	"organization": true,
	"state":        true,
	"city":         true,
	"country":      true,
	"postal_code":  true,
}
