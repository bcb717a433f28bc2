// Package cache provides byte-level caching for tiles, styles, and
// rendered exports.
//
// Backends implementing [Cache]:
//   - [FileCache]: local directory, used by the CLI
//   - [RedisCache]: shared Redis instance, used by the HTTP service
//   - [MongoCache]: MongoDB collection with a TTL index
//   - [NullCache]: disables caching
//
// Keys are produced by a [Keyer] so that backends never see raw URLs or
// access tokens.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with an optional expiry.
type Cache interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default time-to-live per entry kind.
const (
	TileTTL     = 24 * time.Hour
	StyleTTL    = time.Hour
	ArtifactTTL = 10 * time.Minute
)
