// Package registry maps session identifiers to lazily created agents.
//
// Creation is serialized per key with a placeholder entry: concurrent
// callers for the same session wait on one construction, while callers for
// different sessions never block each other. A failed construction rolls
// the placeholder back so a later call can retry.
//
// Entries track last activity and an in-flight request count. The sweeper
// removes entries that sat idle past the configured threshold, but never
// one with a request in flight.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelhq/agenthost/internal/agent"
)

// Common errors returned by Registry.
var (
	// ErrNotFound means the session does not exist.
	ErrNotFound = errors.New("registry: session not found")

	// ErrSessionBusy means the session has requests in flight and cannot
	// be removed.
	ErrSessionBusy = errors.New("registry: session has requests in flight")

	// ErrClosed means the registry has been shut down.
	ErrClosed = errors.New("registry: closed")
)

// AgentFactory constructs the agent for a new session. A factory error is
// surfaced to every caller waiting on that creation.
type AgentFactory func(ctx context.Context, sessionID string) (*agent.Agent, error)

// Metrics is a point-in-time snapshot of registry counters. Fields are
// individually atomic, not mutually consistent.
type Metrics struct {
	AgentsCreated     uint64 `json:"agents_created"`
	CacheHits         uint64 `json:"cache_hits"`
	CacheMisses       uint64 `json:"cache_misses"`
	ActiveCount       int    `json:"active_count"`
	CleanupsPerformed uint64 `json:"cleanups_performed"`
}

// entry is one session's slot. The ready channel closes when construction
// finishes; err is set before the close when construction failed.
type entry struct {
	ready chan struct{}
	err   error

	mu           sync.Mutex
	agent        *agent.Agent
	createdAt    time.Time
	lastActiveAt time.Time
	inFlight     int
}

// touchLocked updates activity with the entry lock held.
func (e *entry) touchLocked(now time.Time) {
	e.lastActiveAt = now
}

// Registry is the session map. All methods are safe for concurrent use.
type Registry struct {
	factory AgentFactory
	logger  *zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	agentsCreated     atomic.Uint64
	cacheHits         atomic.Uint64
	cacheMisses       atomic.Uint64
	cleanupsPerformed atomic.Uint64
}

// New creates a Registry using the given agent factory.
func New(factory AgentFactory, logger *zerolog.Logger) *Registry {
	return &Registry{
		factory: factory,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// GetOrCreate returns the session's agent, constructing it on first use.
// Concurrent callers for one session share a single construction; the
// winner builds, the rest wait on the result. Returns the factory's error,
// wrapped, when construction fails.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID string) (*agent.Agent, error) {
	now := time.Now()

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrClosed
	}
	e, exists := r.entries[sessionID]
	r.mu.RUnlock()

	if exists {
		return r.waitReady(ctx, sessionID, e, now)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	// Double-check after acquiring the write lock.
	if e, exists = r.entries[sessionID]; exists {
		r.mu.Unlock()
		return r.waitReady(ctx, sessionID, e, now)
	}

	// Insert the placeholder and construct outside the map lock so other
	// sessions proceed unblocked.
	e = &entry{ready: make(chan struct{})}
	r.entries[sessionID] = e
	r.mu.Unlock()

	a, err := r.factory(ctx, sessionID)
	if err != nil {
		// Roll back so a later call can retry creation.
		r.mu.Lock()
		delete(r.entries, sessionID)
		r.mu.Unlock()

		e.err = fmt.Errorf("registry: creating session %s: %w", sessionID, err)
		close(e.ready)

		if r.logger != nil {
			r.logger.Error().Str("session_id", sessionID).Err(err).Msg("session creation failed")
		}
		return nil, e.err
	}

	e.mu.Lock()
	e.agent = a
	e.createdAt = now
	e.lastActiveAt = now
	e.mu.Unlock()
	close(e.ready)

	r.agentsCreated.Add(1)
	r.cacheMisses.Add(1)

	if r.logger != nil {
		r.logger.Info().
			Str("session_id", sessionID).
			Str("agent_id", a.ID()).
			Msg("session created")
	}
	return a, nil
}

// waitReady blocks until an existing entry's construction finishes, then
// counts the hit and bumps activity.
func (r *Registry) waitReady(ctx context.Context, sessionID string, e *entry, now time.Time) (*agent.Agent, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if e.err != nil {
		return nil, e.err
	}

	e.mu.Lock()
	e.touchLocked(now)
	a := e.agent
	e.mu.Unlock()

	r.cacheHits.Add(1)

	if r.logger != nil {
		r.logger.Debug().Str("session_id", sessionID).Msg("session cache hit")
	}
	return a, nil
}

// lookup returns a ready entry, or ErrNotFound. Entries still under
// construction are invisible to explicit operations.
func (r *Registry) lookup(sessionID string) (*entry, error) {
	r.mu.RLock()
	e, exists := r.entries[sessionID]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	select {
	case <-e.ready:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if e.err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return e, nil
}

// Touch updates the session's last activity time.
func (r *Registry) Touch(sessionID string) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.touchLocked(time.Now())
	e.mu.Unlock()
	return nil
}

// UpdateExecutionMode changes the session's execution mode without
// replacing its agent.
func (r *Registry) UpdateExecutionMode(sessionID string, mode agent.ExecutionMode) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.touchLocked(time.Now())
	a := e.agent
	e.mu.Unlock()

	a.SetExecutionMode(mode)
	return nil
}

// BeginRequest marks a request in flight for the session and bumps its
// activity. Every BeginRequest must be paired with EndRequest on all exit
// paths, including cancellation.
func (r *Registry) BeginRequest(sessionID string) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.inFlight++
	e.touchLocked(time.Now())
	e.mu.Unlock()
	return nil
}

// EndRequest marks a request finished.
func (r *Registry) EndRequest(sessionID string) error {
	e, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.inFlight > 0 {
		e.inFlight--
	}
	e.touchLocked(time.Now())
	e.mu.Unlock()
	return nil
}

// Remove deletes the session and closes its agent. Sessions with requests
// in flight are rejected with ErrSessionBusy rather than destroyed
// mid-request.
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	e, exists := r.entries[sessionID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	select {
	case <-e.ready:
	default:
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	e.mu.Lock()
	if e.inFlight > 0 {
		inFlight := e.inFlight
		e.mu.Unlock()
		r.mu.Unlock()
		return fmt.Errorf("%w: %s (%d in flight)", ErrSessionBusy, sessionID, inFlight)
	}
	a := e.agent
	e.mu.Unlock()

	delete(r.entries, sessionID)
	r.mu.Unlock()

	r.closeAgent(sessionID, a)
	return nil
}

// SweepIdle removes every session with no in-flight requests whose last
// activity is older than the threshold. Returns the number removed. A
// single skipped entry never stops the sweep.
func (r *Registry) SweepIdle(idleThreshold time.Duration) int {
	now := time.Now()

	r.mu.RLock()
	candidates := make([]string, 0, len(r.entries))
	for sessionID := range r.entries {
		candidates = append(candidates, sessionID)
	}
	r.mu.RUnlock()

	removed := 0
	for _, sessionID := range candidates {
		if r.sweepOne(sessionID, now, idleThreshold) {
			removed++
			r.cleanupsPerformed.Add(1)
		}
	}

	if removed > 0 && r.logger != nil {
		r.logger.Info().
			Int("removed", removed).
			Dur("idle_threshold", idleThreshold).
			Msg("idle sweep removed sessions")
	}
	return removed
}

// sweepOne removes a single session if still idle past the threshold.
// Activity or in-flight requests observed under the locks veto removal, so
// a concurrent touch never loses its session.
func (r *Registry) sweepOne(sessionID string, now time.Time, idleThreshold time.Duration) bool {
	r.mu.Lock()
	e, exists := r.entries[sessionID]
	if !exists {
		r.mu.Unlock()
		return false
	}

	select {
	case <-e.ready:
	default:
		r.mu.Unlock()
		return false
	}
	if e.err != nil {
		r.mu.Unlock()
		return false
	}

	e.mu.Lock()
	if e.inFlight > 0 || now.Sub(e.lastActiveAt) <= idleThreshold {
		e.mu.Unlock()
		r.mu.Unlock()
		return false
	}
	a := e.agent
	e.mu.Unlock()

	delete(r.entries, sessionID)
	r.mu.Unlock()

	r.closeAgent(sessionID, a)
	return true
}

// closeAgent closes an agent, logging instead of propagating failures.
func (r *Registry) closeAgent(sessionID string, a *agent.Agent) {
	if a == nil {
		return
	}
	if err := a.Close(); err != nil && r.logger != nil {
		r.logger.Warn().Str("session_id", sessionID).Err(err).Msg("failed to close agent")
	}
}

// Len returns the number of sessions, including those under construction.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SnapshotMetrics returns current counter values.
func (r *Registry) SnapshotMetrics() Metrics {
	return Metrics{
		AgentsCreated:     r.agentsCreated.Load(),
		CacheHits:         r.cacheHits.Load(),
		CacheMisses:       r.cacheMisses.Load(),
		ActiveCount:       r.Len(),
		CleanupsPerformed: r.cleanupsPerformed.Load(),
	}
}

// Close shuts the registry down, closing every agent. Further operations
// return ErrClosed or ErrNotFound.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for sessionID, e := range entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if e.err != nil {
			continue
		}
		e.mu.Lock()
		a := e.agent
		e.mu.Unlock()
		r.closeAgent(sessionID, a)
	}
	return nil
}
