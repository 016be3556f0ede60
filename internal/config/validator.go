package config

import (
	"net"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Valid routing strategies.
var validRoutingStrategies = map[string]bool{
	"":                true, // Empty defaults to priority
	"priority":        true,
	"round_robin":     true,
	"random":          true,
	"first_available": true,
}

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":      true, // Empty defaults to info
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // Empty defaults to json
	"json":    true,
	"console": true,
	"pretty":  true,
}

// Validate checks the configuration for errors.
// It validates all required fields, valid values, and cross-field constraints.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateServer(c, errs)
	validateProviders(c, errs)
	validateRouting(c, errs)
	validatePool(c, errs)
	validateRegistry(c, errs)
	validateHealth(c, errs)
	validateLogging(c, errs)
	validateCache(c, errs)

	return errs.ToError()
}

func validateCache(c *Config, errs *ValidationError) {
	if err := c.Cache.Validate(); err != nil {
		errs.Add(err.Error())
	}
}

func validateServer(c *Config, errs *ValidationError) {
	if c.Server.Listen == "" {
		errs.Add("server.listen is required")
	} else {
		validateListenAddress(c.Server.Listen, errs)
	}

	if c.Server.TimeoutMS < 0 {
		errs.Add("server.timeout_ms must be >= 0")
	}
	if c.Server.MaxBodyBytes < 0 {
		errs.Add("server.max_body_bytes must be >= 0")
	}
}

func validateListenAddress(listen string, errs *ValidationError) {
	if _, _, err := net.SplitHostPort(listen); err != nil {
		errs.Addf("server.listen %q is not a valid host:port address", listen)
	}
}

func validateProviders(c *Config, errs *ValidationError) {
	if len(c.Providers) == 0 {
		errs.Add("at least one provider is required")
		return
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			errs.Addf("providers[%d].name is required", i)
			continue
		}
		if seen[p.Name] {
			errs.Addf("providers[%d].name %q is duplicated", i, p.Name)
		}
		seen[p.Name] = true

		if p.BaseURL == "" {
			errs.Addf("provider %q: base_url is required", p.Name)
		} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Addf("provider %q: base_url %q is not a valid URL", p.Name, p.BaseURL)
		}

		if p.ProbePath != "" && !strings.HasPrefix(p.ProbePath, "/") {
			errs.Addf("provider %q: probe_path must start with /", p.Name)
		}
		if p.RPMLimit < 0 {
			errs.Addf("provider %q: rpm_limit must be >= 0", p.Name)
		}
	}
}

func validateRouting(c *Config, errs *ValidationError) {
	if !validRoutingStrategies[c.Routing.Strategy] {
		errs.Addf("routing.strategy %q is not a valid strategy", c.Routing.Strategy)
	}

	known := lo.SliceToMap(c.Providers, func(p ProviderConfig) (string, bool) {
		return p.Name, true
	})

	if c.Routing.DefaultProvider != "" && !known[c.Routing.DefaultProvider] {
		errs.Addf("routing.default_provider %q is not a configured provider", c.Routing.DefaultProvider)
	}

	seen := make(map[string]bool, len(c.Routing.Routes))
	for i, route := range c.Routing.Routes {
		if route.Model == "" {
			errs.Addf("routing.routes[%d].model is required", i)
			continue
		}
		if seen[route.Model] {
			errs.Addf("routing.routes[%d]: model %q is duplicated", i, route.Model)
		}
		seen[route.Model] = true

		if route.Primary == "" {
			errs.Addf("route %q: primary is required", route.Model)
		} else if !known[route.Primary] {
			errs.Addf("route %q: primary %q is not a configured provider", route.Model, route.Primary)
		}
		for _, fb := range route.Fallbacks {
			if !known[fb] {
				errs.Addf("route %q: fallback %q is not a configured provider", route.Model, fb)
			}
		}
	}
}

// validatePool requires all four bounds explicitly. The pool rejects rather
// than blocks at capacity, so an unstated bound would silently change
// resource behavior.
func validatePool(c *Config, errs *ValidationError) {
	if c.Pool.MaxSize <= 0 {
		errs.Add("pool.max_size is required and must be > 0")
	}
	if c.Pool.MaxIdleSeconds <= 0 {
		errs.Add("pool.max_idle_seconds is required and must be > 0")
	}
	if c.Pool.MaxLifetimeSeconds <= 0 {
		errs.Add("pool.max_lifetime_seconds is required and must be > 0")
	}
	if c.Pool.MaxUses <= 0 {
		errs.Add("pool.max_uses is required and must be > 0")
	}
}

func validateRegistry(c *Config, errs *ValidationError) {
	if c.Registry.IdleThresholdSeconds <= 0 {
		errs.Add("registry.idle_threshold_seconds is required and must be > 0")
	}
	if c.Registry.SweepIntervalSeconds <= 0 {
		errs.Add("registry.sweep_interval_seconds is required and must be > 0")
	}
}

// validateHealth requires the debounce thresholds explicitly. There are no
// silently-assumed defaults for state transitions.
func validateHealth(c *Config, errs *ValidationError) {
	if c.Health.FailureThreshold <= 0 {
		errs.Add("health.failure_threshold is required and must be > 0")
	}
	if c.Health.RecoveryThreshold <= 0 {
		errs.Add("health.recovery_threshold is required and must be > 0")
	}
	if c.Health.ProbeIntervalMS <= 0 {
		errs.Add("health.probe_interval_ms is required and must be > 0")
	}
	if c.Health.ProbeTimeoutMS < 0 {
		errs.Add("health.probe_timeout_ms must be >= 0")
	}
}

func validateLogging(c *Config, errs *ValidationError) {
	if !validLogLevels[c.Logging.Level] {
		errs.Addf("logging.level %q is not a valid level", c.Logging.Level)
	}
	if !validLogFormats[c.Logging.Format] {
		errs.Addf("logging.format %q is not a valid format", c.Logging.Format)
	}
}
