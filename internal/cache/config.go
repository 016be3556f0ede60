package cache

import (
	"errors"
	"fmt"
	"time"
)

// Mode represents the cache operating mode.
type Mode string

const (
	// ModeLocal uses the in-process Ristretto cache (default).
	ModeLocal Mode = "local"

	// ModeDisabled uses the noop cache. All reads miss, all writes succeed.
	ModeDisabled Mode = "disabled"
)

// DefaultTTL is the completion cache entry lifetime when none is configured.
const DefaultTTL = 5 * time.Minute

// Config defines cache configuration.
// Use Validate to check for configuration errors before creating a cache.
type Config struct {
	Mode      Mode            `yaml:"mode"`
	TTLMS     int             `yaml:"ttl_ms"`
	Ristretto RistrettoConfig `yaml:"ristretto"`
}

// RistrettoConfig configures the Ristretto local cache.
type RistrettoConfig struct {
	// NumCounters is the number of 4-bit access counters.
	// Recommended: 10x expected max items.
	NumCounters int64 `yaml:"num_counters"`

	// MaxCost is the maximum memory the cache can hold, in bytes of
	// cached values.
	MaxCost int64 `yaml:"max_cost"`

	// BufferItems is the number of keys per Get buffer. 64 is a good
	// default.
	BufferItems int64 `yaml:"buffer_items"`
}

// TTL returns the configured entry lifetime, or DefaultTTL.
func (c *Config) TTL() time.Duration {
	if c.TTLMS <= 0 {
		return DefaultTTL
	}
	return time.Duration(c.TTLMS) * time.Millisecond
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal:
		if c.Ristretto.MaxCost <= 0 {
			return errors.New("cache: ristretto.max_cost must be positive")
		}
		if c.Ristretto.NumCounters <= 0 {
			return errors.New("cache: ristretto.num_counters must be positive")
		}
	case ModeDisabled:
		// Nothing to check.
	case "":
		return errors.New("cache: mode is required")
	default:
		return fmt.Errorf("cache: unknown mode %q", c.Mode)
	}
	return nil
}
