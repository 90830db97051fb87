// Package cache stores engine results and rendered artifacts by content
// hash.
//
// Keys come from a [Keyer], so the same spec rendered with the same
// options maps to the same entry in every backend:
//   - [FileCache]: a directory of JSON entries for the CLI
//   - [RedisCache]: a shared cache for API deployments
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with expiring entries.
type Cache interface {
	// Get returns the entry for key. A missing or expired entry is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
	Close() error
}

// Default entry lifetimes.
const (
	PayloadTTL  = 7 * 24 * time.Hour
	ArtifactTTL = 7 * 24 * time.Hour
)
