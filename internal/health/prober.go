package health

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Probe defines how to check whether a provider is alive.
// Implementations should be lightweight, not full completion calls.
type Probe interface {
	// Check performs a liveness check against the provider.
	// Returns nil if healthy, an error otherwise.
	Check(ctx context.Context) error

	// ProviderKey returns the provider being checked.
	ProviderKey() string
}

// HTTPProbe checks liveness with a GET request expecting a 2xx response.
type HTTPProbe struct {
	key    string
	url    string
	client *http.Client
}

// NewHTTPProbe creates an HTTP-based probe.
func NewHTTPProbe(key, url string, client *http.Client) *HTTPProbe {
	if client == nil {
		client = &http.Client{Timeout: defaultProbeTimeout}
	}
	return &HTTPProbe{key: key, url: url, client: client}
}

// Check performs the HTTP probe.
func (p *HTTPProbe) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe status: %d", resp.StatusCode)
	}
	return nil
}

// ProviderKey returns the provider being checked.
func (p *HTTPProbe) ProviderKey() string {
	return p.key
}

// NoopProbe always reports healthy. Used when a provider has no endpoint
// worth probing; its health then moves only on live-call outcomes.
type NoopProbe struct {
	key string
}

// NewNoopProbe creates a probe that always succeeds.
func NewNoopProbe(key string) *NoopProbe {
	return &NoopProbe{key: key}
}

// Check always returns nil.
func (p *NoopProbe) Check(_ context.Context) error {
	return nil
}

// ProviderKey returns the provider key.
func (p *NoopProbe) ProviderKey() string {
	return p.key
}

// Prober periodically checks every registered provider and feeds the
// outcomes into the Tracker, so a provider's health degrades and recovers
// even with no live traffic.
type Prober struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *Tracker
	probes  map[string]Probe
	logger  *zerolog.Logger
	cfg     Config
	wg      sync.WaitGroup
	mu      sync.RWMutex
}

// NewProber creates a Prober feeding the given tracker.
func NewProber(tracker *Tracker, cfg Config, logger *zerolog.Logger) *Prober {
	ctx, cancel := context.WithCancel(context.Background())
	return &Prober{
		ctx:     ctx,
		cancel:  cancel,
		tracker: tracker,
		probes:  make(map[string]Probe),
		cfg:     cfg,
		logger:  logger,
	}
}

// Register adds a probe for a provider, replacing any previous one.
func (p *Prober) Register(probe Probe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes[probe.ProviderKey()] = probe
}

// Start begins periodic probing. Call once after registering providers.
func (p *Prober) Start() {
	if !p.cfg.IsEnabled() {
		if p.logger != nil {
			p.logger.Info().Msg("health prober disabled")
		}
		return
	}

	interval := p.cfg.GetProbeInterval()
	// Jitter up to 2s keeps a fleet of instances from probing in lockstep.
	jitter := randDuration(2 * time.Second)
	ticker := time.NewTicker(interval + jitter)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()

		if p.logger != nil {
			p.logger.Info().
				Dur("interval", interval).
				Dur("jitter", jitter).
				Msg("health prober started")
		}

		for {
			select {
			case <-p.ctx.Done():
				if p.logger != nil {
					p.logger.Info().Msg("health prober stopped")
				}
				return
			case <-ticker.C:
				p.probeAll()
			}
		}
	}()
}

// Stop cancels probing and waits for the goroutine to finish.
func (p *Prober) Stop() {
	p.cancel()
	p.wg.Wait()
}

// probeAll runs one probe sweep. Individual probe errors feed the tracker
// and are otherwise absorbed; a sweep never fails the background task.
func (p *Prober) probeAll() {
	p.mu.RLock()
	probes := make([]Probe, 0, len(p.probes))
	for _, probe := range p.probes {
		probes = append(probes, probe)
	}
	p.mu.RUnlock()

	for _, probe := range probes {
		key := probe.ProviderKey()

		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.GetProbeTimeout())
		err := probe.Check(ctx)
		cancel()

		if err != nil {
			p.tracker.RecordFailure(key, err)
			continue
		}
		p.tracker.RecordSuccess(key)
	}
}

// randDuration returns a random duration in [0, maxDur).
func randDuration(maxDur time.Duration) time.Duration {
	if maxDur <= 0 {
		return 0
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.LittleEndian.Uint64(b[:])
	//nolint:gosec // maxDur is positive, conversion is safe
	return time.Duration(n % uint64(maxDur))
}
