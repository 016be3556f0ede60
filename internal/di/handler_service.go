package di

import (
	"github.com/samber/do/v2"

	"github.com/kestrelhq/agenthost/internal/server"
)

// HandlerService wraps the HTTP handler.
type HandlerService struct {
	Handler *server.Handler
}

// NewHandler assembles the HTTP handler from the core services.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	registrySvc := do.MustInvoke[*RegistryService](i)
	poolSvc := do.MustInvoke[*PoolService](i)
	trackerSvc := do.MustInvoke[*HealthTrackerService](i)
	cacheSvc := do.MustInvoke[*CacheService](i)

	h := server.NewHandler(
		registrySvc.Registry,
		poolSvc.Pool,
		trackerSvc.Tracker,
		cacheSvc.Cache,
		cfgSvc.Runtime,
		*loggerSvc.Logger,
	)
	return &HandlerService{Handler: h}, nil
}
