package cache

import "fmt"

// New creates a Cache based on the configuration.
// Returns an error if the configuration is invalid or the backend fails to
// initialize.
func New(cfg *Config) (Cache, error) {
	log := logger().With().Str("component", "cache_factory").Logger()

	if err := cfg.Validate(); err != nil {
		log.Debug().Err(err).Str("mode", string(cfg.Mode)).Msg("cache config validation failed")
		return nil, err
	}

	switch cfg.Mode {
	case ModeLocal:
		return newRistrettoCache(cfg.Ristretto)
	case ModeDisabled:
		return newNoopCache(), nil
	default:
		return nil, fmt.Errorf("cache: unknown mode %q", cfg.Mode)
	}
}
