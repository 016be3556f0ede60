package di

import (
	"net/http"
	"sync"

	"github.com/samber/do/v2"

	"github.com/kestrelhq/agenthost/internal/health"
)

// HealthTrackerService wraps the provider health tracker.
type HealthTrackerService struct {
	Tracker *health.Tracker
}

// NewHealthTracker creates the health tracker from configuration.
func NewHealthTracker(i do.Injector) (*HealthTrackerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	tracker := health.NewTracker(cfgSvc.Get().Health, loggerSvc.Logger)
	return &HealthTrackerService{Tracker: tracker}, nil
}

// ProberService wraps the background health prober.
type ProberService struct {
	Prober *health.Prober

	started   bool
	startedMu sync.Mutex
}

// NewProber creates the prober with one HTTP probe per configured provider.
func NewProber(i do.Injector) (*ProberService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)
	factorySvc := do.MustInvoke[*ProviderFactoryService](i)

	healthCfg := cfgSvc.Get().Health
	prober := health.NewProber(trackerSvc.Tracker, healthCfg, loggerSvc.Logger)

	probeClient := &http.Client{Timeout: healthCfg.GetProbeTimeout()}
	for _, name := range factorySvc.Factory.Names() {
		endpoint, ok := factorySvc.Factory.Endpoint(name)
		if !ok {
			continue
		}
		prober.Register(health.NewHTTPProbe(name, endpoint.ProbeURL(), probeClient))
	}

	return &ProberService{Prober: prober}, nil
}

// Start begins background probing. Safe to call once; later calls no-op.
func (p *ProberService) Start() {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.Prober.Start()
}

// Shutdown implements do.Shutdowner, stopping the probe loop.
func (p *ProberService) Shutdown() error {
	p.startedMu.Lock()
	started := p.started
	p.startedMu.Unlock()
	if started {
		p.Prober.Stop()
	}
	return nil
}
