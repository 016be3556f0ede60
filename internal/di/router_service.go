package di

import (
	"fmt"

	"github.com/samber/do/v2"
	"github.com/samber/lo"

	"github.com/kestrelhq/agenthost/internal/config"
	"github.com/kestrelhq/agenthost/internal/router"
)

// RouterService wraps the model router.
type RouterService struct {
	Router *router.Router
	Table  *router.Table
}

// rulesFromConfig converts the routing table config to router rules.
func rulesFromConfig(cfg *config.Config) []router.Rule {
	return lo.Map(cfg.Routing.Routes, func(r config.RouteConfig, _ int) router.Rule {
		return router.Rule{
			Model:     r.Model,
			Primary:   r.Primary,
			Fallbacks: r.Fallbacks,
		}
	})
}

// NewRouter creates the router and keeps its route table in sync across
// config reloads. The strategy is fixed per process start.
func NewRouter(i do.Injector) (*RouterService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	poolSvc := do.MustInvoke[*PoolService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)

	cfg := cfgSvc.Get()
	strategy, err := router.NewStrategy(cfg.Routing.GetEffectiveStrategy())
	if err != nil {
		return nil, fmt.Errorf("failed to create routing strategy: %w", err)
	}

	table := router.NewTable(rulesFromConfig(cfg), cfg.Routing.DefaultProvider)
	cfgSvc.OnReload(func(newCfg *config.Config) {
		table.SetRules(rulesFromConfig(newCfg), newCfg.Routing.DefaultProvider)
	})

	return &RouterService{
		Router: router.New(table, strategy, poolSvc.Pool, trackerSvc.Tracker, loggerSvc.Logger),
		Table:  table,
	}, nil
}
