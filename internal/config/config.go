// Package config provides configuration loading and parsing for agenthost.
package config

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/kestrelhq/agenthost/internal/cache"
	"github.com/kestrelhq/agenthost/internal/health"
)

// RuntimeConfig defines the interface for accessing runtime configuration that
// supports hot-reload. Components that need to observe config changes should
// use this interface instead of holding a direct *Config pointer, which would
// become stale after a reload.
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config represents the complete agenthost configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
	Routing   RoutingConfig    `yaml:"routing"`
	Pool      PoolConfig       `yaml:"pool"`
	Registry  RegistryConfig   `yaml:"registry"`
	Health    health.Config    `yaml:"health"`
	Logging   LoggingConfig    `yaml:"logging"`
	Server    ServerConfig     `yaml:"server"`
	Cache     cache.Config     `yaml:"cache"`
}

// ProviderConfig describes a single upstream model-serving backend.
type ProviderConfig struct {
	// Name is the provider key used by routes and the pool.
	Name string `yaml:"name"`

	// BaseURL is the backend API base URL.
	BaseURL string `yaml:"base_url"`

	// APIKey is the credential sent with completion requests.
	// Environment references (${VAR}) are expanded at load time.
	APIKey string `yaml:"api_key"`

	// ProbePath is the path probed by the health checker. Empty means the
	// base URL itself is probed.
	ProbePath string `yaml:"probe_path"`

	// RPMLimit caps requests per minute handed out by the pool for this
	// provider. Zero means unlimited.
	RPMLimit int `yaml:"rpm_limit"`

	// ModelMapping rewrites incoming model names to provider-specific ones.
	ModelMapping map[string]string `yaml:"model_mapping"`

	// Enabled toggles the provider. Defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled returns whether the provider participates in routing.
func (p *ProviderConfig) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// RouteConfig maps one model name to an ordered candidate list.
type RouteConfig struct {
	Model     string   `yaml:"model"`
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

// RoutingConfig defines the routing table and selection behavior.
type RoutingConfig struct {
	// Routes is the model -> (primary, fallbacks) table.
	Routes []RouteConfig `yaml:"routes"`

	// Strategy selects among healthy candidates.
	// Options: priority (default), round_robin, random, first_available.
	Strategy string `yaml:"strategy"`

	// DefaultProvider serves models with no route, with no fallback chain.
	DefaultProvider string `yaml:"default_provider"`
}

// GetEffectiveStrategy returns the routing strategy with default fallback.
// Returns "priority" if Strategy is empty.
func (r *RoutingConfig) GetEffectiveStrategy() string {
	if r.Strategy == "" {
		return "priority"
	}
	return r.Strategy
}

// PoolConfig bounds the provider client pool.
// All four bounds are required; Validate rejects zero values so tests and
// deployments state their limits explicitly.
type PoolConfig struct {
	// MaxSize is the per-provider cap on idle + in-use clients combined.
	MaxSize int `yaml:"max_size"`

	// MaxIdleSeconds evicts clients unused for longer than this.
	MaxIdleSeconds int `yaml:"max_idle_seconds"`

	// MaxLifetimeSeconds evicts clients older than this regardless of use.
	MaxLifetimeSeconds int `yaml:"max_lifetime_seconds"`

	// MaxUses retires a client after this many acquisitions.
	MaxUses int `yaml:"max_uses"`
}

// MaxIdle returns the idle bound as a duration.
func (p *PoolConfig) MaxIdle() time.Duration {
	return time.Duration(p.MaxIdleSeconds) * time.Second
}

// MaxLifetime returns the lifetime bound as a duration.
func (p *PoolConfig) MaxLifetime() time.Duration {
	return time.Duration(p.MaxLifetimeSeconds) * time.Second
}

// RegistryConfig bounds session lifetime in the registry.
// Both values are required configuration.
type RegistryConfig struct {
	// IdleThresholdSeconds is how long a session may sit idle before the
	// sweep removes it.
	IdleThresholdSeconds int `yaml:"idle_threshold_seconds"`

	// SweepIntervalSeconds is how often the idle sweep runs.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// IdleThreshold returns the idle threshold as a duration.
func (r *RegistryConfig) IdleThreshold() time.Duration {
	return time.Duration(r.IdleThresholdSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a duration.
func (r *RegistryConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

// ServerConfig defines the status/completions HTTP server settings.
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	EnableHTTP2  bool   `yaml:"enable_http2"`
}

// GetTimeoutOption returns the request timeout as a duration Option.
// Returns None if TimeoutMS is zero or negative.
func (s *ServerConfig) GetTimeoutOption() mo.Option[time.Duration] {
	if s.TimeoutMS <= 0 {
		return mo.None[time.Duration]()
	}
	return mo.Some(time.Duration(s.TimeoutMS) * time.Millisecond)
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of json, console, pretty. Console auto-detects a TTY.
	Format string `yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output"`

	// Pretty forces human-readable output regardless of Format.
	Pretty bool `yaml:"pretty"`
}

// ParseLevel converts the configured level string to a zerolog.Level.
// Unknown or empty levels default to info.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch l.Level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelInfo, "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}

// ProviderByName returns the provider config with the given name.
func (c *Config) ProviderByName(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
