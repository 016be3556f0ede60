package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelhq/agenthost/internal/cache"
	"github.com/kestrelhq/agenthost/internal/providers"
)

// completionHashLen is the number of hex characters used from the SHA-256
// request digest.
const completionHashLen = 16

// CompletionCache memoizes provider responses keyed by model and request
// payload. A nil CompletionCache is a no-op, so callers never branch on
// whether caching is enabled.
type CompletionCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewCompletionCache creates a completion cache on the given backend.
// Returns nil when the backend is nil.
func NewCompletionCache(c cache.Cache, ttl time.Duration) *CompletionCache {
	if c == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &CompletionCache{cache: c, ttl: ttl}
}

// cacheKey builds the cache key: "cmpl:{model}:{bodyHash}".
func (cc *CompletionCache) cacheKey(req *providers.Request) string {
	h := sha256.Sum256(req.Body)
	bodyHash := hex.EncodeToString(h[:])[:completionHashLen]
	return fmt.Sprintf("cmpl:%s:%s", req.Model, bodyHash)
}

// Get returns the cached response for a request, or nil on a miss.
// Decode failures count as misses; the stale entry is dropped.
func (cc *CompletionCache) Get(ctx context.Context, req *providers.Request) *providers.Response {
	if cc == nil || cc.cache == nil {
		return nil
	}

	key := cc.cacheKey(req)
	data, err := cc.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	var resp providers.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		_ = cc.cache.Delete(ctx, key)
		return nil
	}
	return &resp
}

// Set caches a successful response. Failures to store are silently dropped;
// the cache is an optimization, never a dependency.
func (cc *CompletionCache) Set(ctx context.Context, req *providers.Request, resp *providers.Response) {
	if cc == nil || cc.cache == nil || resp == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = cc.cache.SetWithTTL(ctx, cc.cacheKey(req), data, cc.ttl)
}
