package di

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/kestrelhq/agenthost/internal/config"
)

// ConfigPathKey is the named injection key for the config file path.
const ConfigPathKey = "config_path"

// ConfigService wraps the loaded configuration with hot-reload support.
// Reads go through the runtime's atomic pointer so in-flight requests keep
// the config they started with while new requests see the reloaded one.
type ConfigService struct {
	Runtime *config.Runtime
	watcher *config.Watcher
	path    string

	mu    sync.Mutex
	hooks []func(*config.Config)
}

// Get returns the current configuration (lock-free read).
func (c *ConfigService) Get() *config.Config {
	return c.Runtime.Get()
}

// OnReload registers a hook invoked after each successful hot-reload, once
// the new config is already visible through Get.
func (c *ConfigService) OnReload(hook func(*config.Config)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()
}

// StartWatching begins watching the config file. Call after the container
// is fully initialized so every service's reload hook is registered.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnReload(func(newCfg *config.Config) error {
		c.Runtime.Store(newCfg)

		c.mu.Lock()
		hooks := make([]func(*config.Config), len(c.hooks))
		copy(hooks, c.hooks)
		c.mu.Unlock()

		for _, hook := range hooks {
			hook(newCfg)
		}

		log.Info().Str("path", c.path).Msg("config hot-reloaded")
		return nil
	})

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner for watcher cleanup.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// NewConfig loads and validates configuration from the injected path and
// prepares the file watcher. The watcher starts only via StartWatching.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	svc := &ConfigService{
		Runtime: config.NewRuntime(cfg),
		path:    path,
	}

	// Hot-reload is optional; a watcher failure only disables it.
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}
