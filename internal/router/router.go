// Package router maps model names to provider candidates and executes
// completion requests with health-aware fallback.
//
// A route maps one model to an ordered candidate list (primary followed by
// fallbacks). Selection filters out unhealthy providers first, then a
// load-balancing strategy orders the survivors. Execution walks that order,
// feeding each attempt's outcome back into the health tracker, until one
// candidate succeeds or the list is exhausted.
//
// Available strategies:
//   - priority: first healthy candidate in configured order (default)
//   - round_robin: rotate through healthy candidates per route
//   - random: uniform shuffle of healthy candidates
//   - first_available: first healthy candidate, stateless by contract
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/kestrelhq/agenthost/internal/health"
	"github.com/kestrelhq/agenthost/internal/pool"
	"github.com/kestrelhq/agenthost/internal/providers"
)

// Strategy constants for configuration.
const (
	StrategyPriority       = "priority"
	StrategyRoundRobin     = "round_robin"
	StrategyRandom         = "random"
	StrategyFirstAvailable = "first_available"
)

// Common errors returned by the router.
var (
	// ErrNoRoute means the model has no route and no default provider is
	// configured.
	ErrNoRoute = errors.New("router: no route for model")

	// ErrAllProvidersFailed means every candidate was unhealthy or failed
	// during this call.
	ErrAllProvidersFailed = errors.New("router: all providers failed")
)

// Candidate is one provider in a route's candidate list.
type Candidate struct {
	// Provider is the provider key.
	Provider string

	// IsHealthy reports current health. Nil means always healthy.
	IsHealthy func() bool
}

// Healthy returns whether the candidate may be attempted.
func (c Candidate) Healthy() bool {
	if c.IsHealthy == nil {
		return true
	}
	return c.IsHealthy()
}

// FilterHealthy returns only the healthy candidates, preserving order.
func FilterHealthy(candidates []Candidate) []Candidate {
	return lo.Filter(candidates, func(c Candidate, _ int) bool {
		return c.Healthy()
	})
}

// Strategy orders healthy candidates into attempt order for one call.
// The first element is the selection; the rest are the fallback walk.
type Strategy interface {
	// Order returns candidates in attempt order. The input is already
	// health-filtered and never empty.
	Order(routeKey string, healthy []Candidate) []Candidate

	// Name returns the strategy name for logging and configuration.
	Name() string
}

// NewStrategy creates a Strategy from its configured name.
// An empty name selects priority.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case StrategyPriority, "":
		return NewPriorityStrategy(), nil
	case StrategyRoundRobin:
		return NewRoundRobinStrategy(), nil
	case StrategyRandom:
		return NewRandomStrategy(), nil
	case StrategyFirstAvailable:
		return NewFirstAvailableStrategy(), nil
	default:
		return nil, fmt.Errorf("router: unknown strategy %q", name)
	}
}

// Router resolves models to providers and executes completions with
// fallback. All methods are safe for concurrent use.
type Router struct {
	table    *Table
	strategy Strategy
	pool     *pool.Pool
	tracker  *health.Tracker
	logger   *zerolog.Logger
}

// New creates a Router.
func New(table *Table, strategy Strategy, p *pool.Pool, tracker *health.Tracker, logger *zerolog.Logger) *Router {
	return &Router{
		table:    table,
		strategy: strategy,
		pool:     p,
		tracker:  tracker,
		logger:   logger,
	}
}

// Route returns the candidate list for a model: the route's primary and
// fallbacks in configured order, or the default provider alone when the
// model has no route. Returns ErrNoRoute when neither exists.
func (r *Router) Route(model string) ([]Candidate, error) {
	keys := r.table.Candidates(model)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, model)
	}

	candidates := make([]Candidate, len(keys))
	for i, key := range keys {
		candidates[i] = Candidate{
			Provider:  key,
			IsHealthy: r.tracker.IsHealthyFunc(key),
		}
	}
	return candidates, nil
}

// Select returns the provider key the configured strategy picks for the
// model right now. Returns ErrAllProvidersFailed when every candidate is
// unhealthy.
func (r *Router) Select(model string) (string, error) {
	ordered, err := r.orderedCandidates(model)
	if err != nil {
		return "", err
	}
	return ordered[0].Provider, nil
}

// orderedCandidates resolves, health-filters, and orders the candidates
// for one call.
func (r *Router) orderedCandidates(model string) ([]Candidate, error) {
	candidates, err := r.Route(model)
	if err != nil {
		return nil, err
	}

	healthy := FilterHealthy(candidates)
	if len(healthy) == 0 {
		if r.logger != nil {
			r.logger.Warn().
				Str("model", model).
				Int("candidates", len(candidates)).
				Msg("every candidate unhealthy")
		}
		return nil, fmt.Errorf("%w: model %s", ErrAllProvidersFailed, model)
	}

	return r.strategy.Order(model, healthy), nil
}

// ExecuteWithFallback runs a completion against the model's candidates in
// strategy order. Each failed attempt feeds the health tracker and the next
// candidate is tried; a success also feeds the tracker and returns
// immediately. Leases are released on every exit path. Returns
// ErrAllProvidersFailed once every candidate in this call has failed.
func (r *Router) ExecuteWithFallback(ctx context.Context, model string, req *providers.Request) (*providers.Response, error) {
	ordered, err := r.orderedCandidates(model)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, candidate := range ordered {
		resp, err := r.tryCandidate(ctx, candidate.Provider, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			// The caller abandoned the request; the outcome says nothing
			// about provider health.
			return nil, ctx.Err()
		}
		lastErr = err

		if r.logger != nil {
			r.logger.Debug().
				Str("model", model).
				Str("provider", candidate.Provider).
				Err(err).
				Msg("candidate failed, trying next")
		}
	}

	return nil, fmt.Errorf("%w: model %s: %w", ErrAllProvidersFailed, model, lastErr)
}

// tryCandidate runs one attempt against one provider through the pool.
func (r *Router) tryCandidate(ctx context.Context, provider string, req *providers.Request) (*providers.Response, error) {
	lease, err := r.pool.Acquire(ctx, provider)
	if err != nil {
		// Pool exhaustion and rate caps are local conditions, not provider
		// faults; they skip the candidate without touching its health.
		return nil, err
	}
	defer lease.Release()

	resp, err := lease.Client().Complete(ctx, req)
	if err != nil {
		if ctx.Err() == nil {
			r.tracker.RecordFailure(provider, err)
		}
		return nil, err
	}

	r.tracker.RecordSuccess(provider)
	return resp, nil
}
