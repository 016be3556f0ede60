package di

import (
	"github.com/samber/do/v2"

	"github.com/kestrelhq/agenthost/internal/config"
	"github.com/kestrelhq/agenthost/internal/pool"
)

// PoolService wraps the provider client pool.
type PoolService struct {
	Pool *pool.Pool
}

// poolConfigFrom converts the yaml pool bounds to pool.Config.
func poolConfigFrom(cfg *config.Config) pool.Config {
	return pool.Config{
		MaxSize:     cfg.Pool.MaxSize,
		MaxIdle:     cfg.Pool.MaxIdle(),
		MaxLifetime: cfg.Pool.MaxLifetime(),
		MaxUses:     cfg.Pool.MaxUses,
	}
}

// NewPool creates the pool and keeps its bounds and per-provider rate caps
// in sync across config reloads.
func NewPool(i do.Injector) (*PoolService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	factorySvc := do.MustInvoke[*ProviderFactoryService](i)

	cfg := cfgSvc.Get()
	p := pool.New(factorySvc.Factory, poolConfigFrom(cfg), loggerSvc.Logger)
	applyRPMLimits(p, cfg)

	cfgSvc.OnReload(func(newCfg *config.Config) {
		p.Configure(poolConfigFrom(newCfg))
		applyRPMLimits(p, newCfg)
	})

	return &PoolService{Pool: p}, nil
}

func applyRPMLimits(p *pool.Pool, cfg *config.Config) {
	for _, provider := range cfg.Providers {
		p.SetRPMLimit(provider.Name, provider.RPMLimit)
	}
}

// Shutdown implements do.Shutdowner, closing every idle client.
func (p *PoolService) Shutdown() error {
	return p.Pool.Close()
}
