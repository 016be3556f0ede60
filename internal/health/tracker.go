package health

import (
	"sync"

	"github.com/rs/zerolog"
)

// State is the debounced health classification of one provider.
type State int

const (
	// StateHealthy means the provider is serving traffic normally.
	StateHealthy State = iota

	// StateUnhealthy means the provider crossed the failure threshold and
	// is filtered out of routing until it recovers.
	StateUnhealthy
)

// String returns the state name for logging and the status surface.
func (s State) String() string {
	if s == StateUnhealthy {
		return "unhealthy"
	}
	return "healthy"
}

// Status is a point-in-time snapshot of one provider's health.
type Status struct {
	State                State `json:"state"`
	ConsecutiveFailures  int   `json:"consecutive_failures"`
	ConsecutiveSuccesses int   `json:"consecutive_successes"`
}

// MarshalText lets Status.State render as its name in JSON maps.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// providerHealth holds the counters and state for one provider.
// The zero value is Healthy with clean counters, which is how unseen
// providers are treated.
type providerHealth struct {
	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
}

// Tracker maintains per-provider health state. All methods are safe for
// concurrent use; counters for one provider are updated under that
// provider's own lock so providers never contend with each other.
type Tracker struct {
	providers map[string]*providerHealth
	logger    *zerolog.Logger
	cfg       Config
	mu        sync.RWMutex
}

// NewTracker creates a Tracker with the given thresholds.
func NewTracker(cfg Config, logger *zerolog.Logger) *Tracker {
	return &Tracker{
		providers: make(map[string]*providerHealth),
		cfg:       cfg,
		logger:    logger,
	}
}

// getOrCreate returns the health record for a provider, creating it lazily.
func (t *Tracker) getOrCreate(providerKey string) *providerHealth {
	t.mu.RLock()
	ph, exists := t.providers[providerKey]
	t.mu.RUnlock()
	if exists {
		return ph
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring the write lock.
	if ph, exists = t.providers[providerKey]; exists {
		return ph
	}

	ph = &providerHealth{}
	t.providers[providerKey] = ph
	return ph
}

// RecordSuccess feeds one successful outcome (probe or live call) into the
// provider's counters, transitioning Unhealthy -> Healthy at the recovery
// threshold.
func (t *Tracker) RecordSuccess(providerKey string) {
	ph := t.getOrCreate(providerKey)

	ph.mu.Lock()
	ph.consecutiveFailures = 0
	ph.consecutiveSuccesses++
	transitioned := ph.state == StateUnhealthy && ph.consecutiveSuccesses >= t.cfg.RecoveryThreshold
	if transitioned {
		ph.state = StateHealthy
	}
	ph.mu.Unlock()

	if transitioned && t.logger != nil {
		t.logger.Info().
			Str("provider", providerKey).
			Int("recovery_threshold", t.cfg.RecoveryThreshold).
			Msg("provider recovered")
	}
}

// RecordFailure feeds one failed outcome into the provider's counters,
// transitioning Healthy -> Unhealthy at the failure threshold.
func (t *Tracker) RecordFailure(providerKey string, err error) {
	ph := t.getOrCreate(providerKey)

	ph.mu.Lock()
	ph.consecutiveSuccesses = 0
	ph.consecutiveFailures++
	transitioned := ph.state == StateHealthy && ph.consecutiveFailures >= t.cfg.FailureThreshold
	if transitioned {
		ph.state = StateUnhealthy
	}
	failures := ph.consecutiveFailures
	ph.mu.Unlock()

	if t.logger == nil {
		return
	}
	if transitioned {
		t.logger.Warn().
			Str("provider", providerKey).
			Int("consecutive_failures", failures).
			Err(err).
			Msg("provider marked unhealthy")
	} else {
		t.logger.Debug().
			Str("provider", providerKey).
			Int("consecutive_failures", failures).
			Err(err).
			Msg("recorded provider failure")
	}
}

// State returns the current state for a provider. Unknown providers are
// Healthy: a provider has to earn its way to Unhealthy.
func (t *Tracker) State(providerKey string) State {
	t.mu.RLock()
	ph, exists := t.providers[providerKey]
	t.mu.RUnlock()
	if !exists {
		return StateHealthy
	}

	ph.mu.Lock()
	defer ph.mu.Unlock()
	return ph.state
}

// IsHealthyFunc returns a closure reporting whether a provider is currently
// healthy, for wiring into the router's candidate filter.
func (t *Tracker) IsHealthyFunc(providerKey string) func() bool {
	return func() bool {
		return t.State(providerKey) == StateHealthy
	}
}

// Snapshot returns the status of every tracked provider.
func (t *Tracker) Snapshot() map[string]Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := make(map[string]Status, len(t.providers))
	for key, ph := range t.providers {
		ph.mu.Lock()
		snap[key] = Status{
			State:                ph.state,
			ConsecutiveFailures:  ph.consecutiveFailures,
			ConsecutiveSuccesses: ph.consecutiveSuccesses,
		}
		ph.mu.Unlock()
	}
	return snap
}
