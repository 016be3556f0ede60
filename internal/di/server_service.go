package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/kestrelhq/agenthost/internal/server"
)

// shutdownGrace bounds how long in-flight requests get to finish.
const shutdownGrace = 30 * time.Second

// ServerService wraps the HTTP server.
type ServerService struct {
	Server *server.Server
}

// NewHTTPServer creates the HTTP server from the handler and config.
func NewHTTPServer(i do.Injector) (*ServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	serverCfg := cfgSvc.Get().Server
	srv := server.NewServer(serverCfg.Listen, handlerSvc.Handler.Routes(), serverCfg.EnableHTTP2)
	return &ServerService{Server: srv}, nil
}

// Shutdown implements do.Shutdowner for graceful server stop.
func (s *ServerService) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
