package di

import (
	"github.com/samber/do/v2"
	"github.com/samber/lo"

	"github.com/kestrelhq/agenthost/internal/config"
	"github.com/kestrelhq/agenthost/internal/providers"
)

// ProviderFactoryService wraps the provider client factory.
type ProviderFactoryService struct {
	Factory *providers.Factory
}

// endpointsFromConfig converts enabled provider configs to endpoints.
func endpointsFromConfig(cfg *config.Config) []providers.Endpoint {
	enabled := lo.Filter(cfg.Providers, func(p config.ProviderConfig, _ int) bool {
		return p.IsEnabled()
	})
	return lo.Map(enabled, func(p config.ProviderConfig, _ int) providers.Endpoint {
		return providers.Endpoint{
			Name:         p.Name,
			BaseURL:      p.BaseURL,
			APIKey:       p.APIKey,
			ProbePath:    p.ProbePath,
			ModelMapping: p.ModelMapping,
		}
	})
}

// NewProviderFactory creates the factory and keeps its endpoint table in
// sync across config reloads.
func NewProviderFactory(i do.Injector) (*ProviderFactoryService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	factory := providers.NewFactory(endpointsFromConfig(cfgSvc.Get()))

	cfgSvc.OnReload(func(newCfg *config.Config) {
		factory.SetEndpoints(endpointsFromConfig(newCfg))
	})

	return &ProviderFactoryService{Factory: factory}, nil
}
