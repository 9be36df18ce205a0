// Package cache stores simulation reports and rendered plan graphs.
//
// Three backends implement [Cache]: [FileCache] for the CLI (one JSON file
// per entry under the user cache directory), [RedisCache] for the HTTP
// server, where several instances share results, and [NullCache] when
// caching is turned off. Keys come from a [Keyer] so callers never build
// key strings by hand.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry lifetimes.
const (
	// TTLReport bounds how long a simulation report is reused for the
	// same scenario.
	TTLReport = 24 * time.Hour

	// TTLRender bounds rendered plan graphs.
	TTLRender = 7 * 24 * time.Hour
)
