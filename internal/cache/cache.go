// Package cache provides the TTL-bounded key/marker stores used to detect
// redelivered events.
package cache

import (
	"context"
	"time"
)

// Cache is a process-external key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and whether an unexpired entry exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Put stores value under key for ttl, replacing any previous entry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Adder is implemented by backends with an atomic set-if-absent.
type Adder interface {
	// Add stores value under key for ttl only when no unexpired entry
	// exists. It reports whether the value was stored.
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
