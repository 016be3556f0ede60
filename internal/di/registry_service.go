package di

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/do/v2"

	"github.com/kestrelhq/agenthost/internal/agent"
	"github.com/kestrelhq/agenthost/internal/registry"
)

// RegistryService wraps the session registry and its idle sweeper.
type RegistryService struct {
	Registry *registry.Registry
	Sweeper  *registry.Sweeper

	started   bool
	startedMu sync.Mutex
}

// NewRegistry creates the registry with an agent factory wiring each new
// session to the router and the completion cache.
func NewRegistry(i do.Injector) (*RegistryService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	routerSvc := do.MustInvoke[*RouterService](i)
	cacheSvc := do.MustInvoke[*CacheService](i)

	cfg := cfgSvc.Get()
	completionCache := agent.NewCompletionCache(cacheSvc.Cache, cfg.Cache.TTL())

	factory := func(_ context.Context, sessionID string) (*agent.Agent, error) {
		return agent.New(sessionID, routerSvc.Router, completionCache, loggerSvc.Logger), nil
	}

	reg := registry.New(factory, loggerSvc.Logger)
	sweeper := registry.NewSweeper(reg, registry.SweeperConfig{
		IdleThreshold: cfg.Registry.IdleThreshold(),
		Interval:      cfg.Registry.SweepInterval(),
	}, loggerSvc.Logger)

	return &RegistryService{Registry: reg, Sweeper: sweeper}, nil
}

// Start begins the idle sweep. Safe to call once; later calls no-op.
func (r *RegistryService) Start() {
	r.startedMu.Lock()
	defer r.startedMu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.Sweeper.Start()
}

// Shutdown implements do.Shutdowner, stopping the sweeper and closing
// every session's agent.
func (r *RegistryService) Shutdown() error {
	r.startedMu.Lock()
	started := r.started
	r.startedMu.Unlock()

	if started {
		r.Sweeper.Stop()
	}
	if err := r.Registry.Close(); err != nil && !errors.Is(err, registry.ErrClosed) {
		return err
	}
	return nil
}
