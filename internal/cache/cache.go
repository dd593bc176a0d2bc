// Package cache provides the injected TTL cache that report memoization
// runs through. Values are opaque bytes; Memoize handles JSON encoding.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache stores values for a bounded time.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Observer is notified of hits and misses.
type Observer interface {
	CacheHit(kind string)
	CacheMiss(kind string)
}

// Memoize returns the cached value for key or computes, stores and returns
// it. A cache read or write failure falls through to compute; errors from
// compute are returned and never cached.
func Memoize[T any](ctx context.Context, c Cache, obs Observer, kind, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	if c != nil {
		if raw, ok, err := c.Get(ctx, key); err == nil && ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				if obs != nil {
					obs.CacheHit(kind)
				}
				return v, true, nil
			}
		}
	}
	if obs != nil {
		obs.CacheMiss(kind)
	}

	v, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if c != nil {
		if raw, err := json.Marshal(v); err == nil {
			_ = c.Set(ctx, key, raw, ttl)
		}
	}
	return v, false, nil
}

// Key joins parts into a namespaced cache key.
func Key(kind string, parts ...any) string {
	k := "blend:" + kind
	for _, p := range parts {
		k += fmt.Sprintf(":%v", p)
	}
	return k
}
