// Package pool provides bounded pooling of provider clients.
//
// Each provider gets its own bucket of reusable clients, capped at a
// configured size. Idle clients are retired when they sit unused too long,
// outlive their lifetime, or cross their use count. Exhaustion is surfaced
// to the caller instead of queueing; the router treats it as a candidate
// failure and moves on.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kestrelhq/agenthost/internal/providers"
)

// Common errors returned by Pool.
var (
	// ErrPoolExhausted means every slot for the provider is checked out.
	ErrPoolExhausted = errors.New("pool: all clients in use")

	// ErrRateLimited means the provider's request rate cap was hit.
	ErrRateLimited = errors.New("pool: provider rate limit exceeded")

	// ErrPoolClosed means the pool has been shut down.
	ErrPoolClosed = errors.New("pool: closed")
)

// ClientFactory creates a fresh client for a provider key.
// *providers.Factory satisfies this.
type ClientFactory interface {
	New(name string) (providers.Client, error)
}

// Config bounds one pool. All four bounds are required; the config
// validator rejects zero values before a pool is ever built.
type Config struct {
	// MaxSize caps idle + in-use clients per provider.
	MaxSize int

	// MaxIdle retires a client idle for longer than this.
	MaxIdle time.Duration

	// MaxLifetime retires a client older than this regardless of use.
	MaxLifetime time.Duration

	// MaxUses retires a client after this many acquisitions.
	MaxUses int
}

// Metrics is a point-in-time view of pool state.
type Metrics struct {
	Size         int    `json:"size"`
	IdleCount    int    `json:"idle_count"`
	InUseCount   int    `json:"in_use_count"`
	TotalCreated uint64 `json:"total_created"`
	TotalEvicted uint64 `json:"total_evicted"`
}

// entry is one pooled client with its age and usage bookkeeping.
type entry struct {
	client     providers.Client
	createdAt  time.Time
	lastUsedAt time.Time
	useCount   int
}

// expired reports whether the entry should be discarded instead of reused.
// Checked while idle at acquire time; lifetime and uses also apply at release.
func (e *entry) expired(cfg Config, now time.Time) bool {
	if cfg.MaxIdle > 0 && now.Sub(e.lastUsedAt) > cfg.MaxIdle {
		return true
	}
	return e.retired(cfg, now)
}

// retired reports whether the entry has crossed lifetime or use bounds.
func (e *entry) retired(cfg Config, now time.Time) bool {
	if cfg.MaxLifetime > 0 && now.Sub(e.createdAt) > cfg.MaxLifetime {
		return true
	}
	if cfg.MaxUses > 0 && e.useCount >= cfg.MaxUses {
		return true
	}
	return false
}

// bucket holds the per-provider client set. Idle entries are a LIFO stack
// so recently used clients, with warm connections, are handed out first.
type bucket struct {
	mu           sync.Mutex
	idle         []*entry
	inUse        int
	size         int
	totalCreated uint64
	totalEvicted uint64
}

// Lease is a checked-out client. Release returns it to the pool; calling
// Release more than once is a no-op.
type Lease struct {
	pool     *Pool
	entry    *entry
	provider string
	released bool
	mu       sync.Mutex
}

// Client returns the leased provider client.
func (l *Lease) Client() providers.Client {
	return l.entry.client
}

// Provider returns the provider key this lease belongs to.
func (l *Lease) Provider() string {
	return l.provider
}

// Release returns the client to the pool, or retires it if it has crossed
// its lifetime or use bounds.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()

	l.pool.release(l.provider, l.entry)
}

// Pool manages per-provider client buckets. All methods are safe for
// concurrent use.
type Pool struct {
	factory  ClientFactory
	buckets  map[string]*bucket
	limiters map[string]*rate.Limiter
	logger   *zerolog.Logger
	cfg      Config
	closed   bool
	mu       sync.RWMutex
}

// New creates a Pool backed by the given client factory.
func New(factory ClientFactory, cfg Config, logger *zerolog.Logger) *Pool {
	return &Pool{
		factory:  factory,
		buckets:  make(map[string]*bucket),
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
		logger:   logger,
	}
}

// SetRPMLimit caps acquisitions for a provider at the given requests per
// minute. Zero removes the cap.
func (p *Pool) SetRPMLimit(provider string, rpm int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rpm <= 0 {
		delete(p.limiters, provider)
		return
	}
	p.limiters[provider] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

// Configure replaces the pool bounds. Existing entries are judged against
// the new bounds on their next acquire or release.
func (p *Pool) Configure(cfg Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Pool) config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// getOrCreateBucket returns the bucket for a provider, creating it lazily.
func (p *Pool) getOrCreateBucket(provider string) *bucket {
	p.mu.RLock()
	b, exists := p.buckets[provider]
	p.mu.RUnlock()
	if exists {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring the write lock.
	if b, exists = p.buckets[provider]; exists {
		return b
	}

	b = &bucket{}
	p.buckets[provider] = b
	return b
}

// Acquire checks out a client for the provider. An idle client within
// bounds is reused; otherwise a new one is created while the bucket is
// below MaxSize. Returns ErrPoolExhausted when every slot is in use and
// ErrRateLimited when the provider's RPM cap is hit.
func (p *Pool) Acquire(ctx context.Context, provider string) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	closed := p.closed
	limiter := p.limiters[provider]
	p.mu.RUnlock()

	if closed {
		return nil, ErrPoolClosed
	}
	if limiter != nil && !limiter.Allow() {
		if p.logger != nil {
			p.logger.Warn().Str("provider", provider).Msg("provider rate limit exceeded")
		}
		return nil, ErrRateLimited
	}

	cfg := p.config()
	b := p.getOrCreateBucket(provider)
	now := time.Now()

	b.mu.Lock()

	// Drain stale idle entries, newest first. Reuse the first live one.
	for len(b.idle) > 0 {
		e := b.idle[len(b.idle)-1]
		b.idle = b.idle[:len(b.idle)-1]

		if e.expired(cfg, now) {
			b.size--
			b.totalEvicted++
			b.mu.Unlock()
			p.discard(provider, e, "expired")
			b.mu.Lock()
			continue
		}

		e.useCount++
		e.lastUsedAt = now
		b.inUse++
		b.mu.Unlock()
		return &Lease{pool: p, entry: e, provider: provider}, nil
	}

	if b.size >= cfg.MaxSize {
		b.mu.Unlock()
		if p.logger != nil {
			p.logger.Warn().
				Str("provider", provider).
				Int("max_size", cfg.MaxSize).
				Msg("pool exhausted")
		}
		return nil, ErrPoolExhausted
	}

	// Reserve the slot before creating so concurrent acquires respect
	// MaxSize even while the factory runs.
	b.size++
	b.inUse++
	b.totalCreated++
	b.mu.Unlock()

	client, err := p.factory.New(provider)
	if err != nil {
		b.mu.Lock()
		b.size--
		b.inUse--
		b.totalCreated--
		b.mu.Unlock()
		return nil, err
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("provider", provider).
			Str("client_id", client.ID()).
			Msg("created pooled client")
	}

	e := &entry{
		client:     client,
		createdAt:  now,
		lastUsedAt: now,
		useCount:   1,
	}
	return &Lease{pool: p, entry: e, provider: provider}, nil
}

// release returns an entry to its bucket or retires it.
func (p *Pool) release(provider string, e *entry) {
	cfg := p.config()
	b := p.getOrCreateBucket(provider)
	now := time.Now()

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	b.mu.Lock()
	b.inUse--

	if closed || e.retired(cfg, now) {
		b.size--
		b.totalEvicted++
		b.mu.Unlock()
		p.discard(provider, e, "retired")
		return
	}

	e.lastUsedAt = now
	b.idle = append(b.idle, e)
	b.mu.Unlock()
}

// discard closes a retired client's resources.
func (p *Pool) discard(provider string, e *entry, reason string) {
	if err := e.client.Close(); err != nil && p.logger != nil {
		p.logger.Warn().
			Str("provider", provider).
			Str("client_id", e.client.ID()).
			Err(err).
			Msg("failed to close pooled client")
		return
	}
	if p.logger != nil {
		p.logger.Debug().
			Str("provider", provider).
			Str("client_id", e.client.ID()).
			Str("reason", reason).
			Int("use_count", e.useCount).
			Msg("discarded pooled client")
	}
}

// Stats returns aggregate metrics across all providers.
func (p *Pool) Stats() Metrics {
	var total Metrics
	for _, m := range p.StatsByProvider() {
		total.Size += m.Size
		total.IdleCount += m.IdleCount
		total.InUseCount += m.InUseCount
		total.TotalCreated += m.TotalCreated
		total.TotalEvicted += m.TotalEvicted
	}
	return total
}

// StatsByProvider returns per-provider metrics.
func (p *Pool) StatsByProvider() map[string]Metrics {
	p.mu.RLock()
	buckets := make(map[string]*bucket, len(p.buckets))
	for name, b := range p.buckets {
		buckets[name] = b
	}
	p.mu.RUnlock()

	stats := make(map[string]Metrics, len(buckets))
	for name, b := range buckets {
		b.mu.Lock()
		stats[name] = Metrics{
			Size:         b.size,
			IdleCount:    len(b.idle),
			InUseCount:   b.inUse,
			TotalCreated: b.totalCreated,
			TotalEvicted: b.totalEvicted,
		}
		b.mu.Unlock()
	}
	return stats
}

// Close shuts down the pool, closing every idle client. Clients still
// checked out are closed when their leases are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	buckets := make([]*bucket, 0, len(p.buckets))
	names := make([]string, 0, len(p.buckets))
	for name, b := range p.buckets {
		buckets = append(buckets, b)
		names = append(names, name)
	}
	p.mu.Unlock()

	for i, b := range buckets {
		b.mu.Lock()
		idle := b.idle
		b.idle = nil
		b.size -= len(idle)
		b.totalEvicted += uint64(len(idle))
		b.mu.Unlock()

		for _, e := range idle {
			p.discard(names[i], e, "pool closed")
		}
	}
	return nil
}
