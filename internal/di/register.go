// Package di wires agenthost services together with samber/do.
package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons, in
// dependency order:
//  1. Config (needs the named config path)
//  2. Logger (Config)
//  3. Cache (Config, Logger)
//  4. ProviderFactory (Config)
//  5. Pool (Config, Logger, ProviderFactory)
//  6. HealthTracker (Config, Logger)
//  7. Prober (Config, Logger, HealthTracker, ProviderFactory)
//  8. Router (Config, Logger, Pool, HealthTracker)
//  9. Registry (Config, Logger, Router, Cache)
//  10. Handler (everything above)
//  11. Server (Config, Handler)
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewCache)
	do.Provide(i, NewProviderFactory)
	do.Provide(i, NewPool)
	do.Provide(i, NewHealthTracker)
	do.Provide(i, NewProber)
	do.Provide(i, NewRouter)
	do.Provide(i, NewRegistry)
	do.Provide(i, NewHandler)
	do.Provide(i, NewHTTPServer)
}
