// Package cache provides the completion cache for agenthost.
//
// Two backends sit behind one interface:
//   - Local mode (Ristretto): in-memory cache with frequency-based admission
//   - Disabled mode (Noop): passthrough when caching is off
//
// All implementations are safe for concurrent use.
//
// Basic usage:
//
//	cfg := cache.Config{
//		Mode: cache.ModeLocal,
//		Ristretto: cache.RistrettoConfig{
//			NumCounters: 1e6,
//			MaxCost:     64 << 20, // 64 MB
//		},
//	}
//
//	c, err := cache.New(&cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for cache operations.
// All implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns ErrNotFound if the key does not exist.
	// Returns ErrClosed if the cache has been closed.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores a value with a time-to-live. After the TTL expires
	// the key is no longer retrievable.
	// Returns ErrClosed if the cache has been closed.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Nil if the key does not exist (idempotent).
	// Returns ErrClosed if the cache has been closed.
	Delete(ctx context.Context, key string) error

	// Close releases cache resources. After Close, all operations return
	// ErrClosed. Close is idempotent.
	Close() error
}

// Stats provides cache statistics for the status surface.
type Stats struct {
	// Hits is the number of cache hits.
	Hits uint64 `json:"hits"`

	// Misses is the number of cache misses.
	Misses uint64 `json:"misses"`

	// Evictions is the number of keys evicted due to capacity limits.
	Evictions uint64 `json:"evictions"`
}

// StatsProvider is an optional interface for caches that expose statistics.
// Use a type assertion to check for support:
//
//	if sp, ok := c.(cache.StatsProvider); ok {
//		stats := sp.Stats()
//	}
type StatsProvider interface {
	Stats() Stats
}
