package httputil

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/mapexport/pkg/cache"
)

// Cache stores JSON-marshalable documents (styles, TileJSON) on top of a
// byte-level [cache.Cache].
//
// Use [Cache.Namespace] to create scoped views that automatically prefix
// keys, avoiding collisions between document kinds:
//
//	styles := docs.Namespace("style:")
//	tilejson := docs.Namespace("tilejson:")
type Cache struct {
	store  cache.Cache
	ttl    time.Duration
	prefix string
}

// NewCache wraps store. A nil store disables caching.
func NewCache(store cache.Cache, ttl time.Duration) *Cache {
	if store == nil {
		store = cache.NewNullCache()
	}
	return &Cache{store: store, ttl: ttl}
}

// TTL returns the time-to-live duration for cache entries.
// A TTL of 0 means cache entries never expire.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a cached value by key and unmarshals it into v.
//
// It returns (true, nil) on a hit, (false, nil) on a miss, and
// (false, err) when the backend fails or the entry is not valid JSON for v.
func (c *Cache) Get(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := c.store.Get(ctx, c.prefix+key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v under key.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.prefix+key, data, c.ttl)
}

// Namespace returns a new Cache that automatically prefixes all keys with prefix.
// Namespace calls can be chained to create hierarchical key spaces.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{
		store:  c.store,
		ttl:    c.ttl,
		prefix: c.prefix + prefix,
	}
}
