package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/kestrelhq/agenthost/internal/cache"
	"github.com/kestrelhq/agenthost/internal/config"
	"github.com/kestrelhq/agenthost/internal/health"
)

// validBase returns a configuration that passes validation. Tests mutate a
// copy to exercise individual rules.
func validBase() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Listen: ":8890"},
		Providers: []config.ProviderConfig{
			{Name: "api", BaseURL: "https://api.example.com"},
			{Name: "backup", BaseURL: "https://backup.example.com"},
		},
		Routing: config.RoutingConfig{
			Strategy:        "priority",
			DefaultProvider: "api",
			Routes: []config.RouteConfig{
				{Model: "gpt-x", Primary: "api", Fallbacks: []string{"backup"}},
			},
		},
		Pool: config.PoolConfig{
			MaxSize:            8,
			MaxIdleSeconds:     120,
			MaxLifetimeSeconds: 3600,
			MaxUses:            500,
		},
		Registry: config.RegistryConfig{
			IdleThresholdSeconds: 600,
			SweepIntervalSeconds: 60,
		},
		Health: health.Config{
			FailureThreshold:  3,
			RecoveryThreshold: 2,
			ProbeIntervalMS:   15000,
		},
		Cache: cache.Config{Mode: cache.ModeDisabled},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Parallel()

	if err := validBase().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{
			name:    "missing listen",
			mutate:  func(c *config.Config) { c.Server.Listen = "" },
			wantMsg: "server.listen is required",
		},
		{
			name:    "malformed listen",
			mutate:  func(c *config.Config) { c.Server.Listen = "no-port" },
			wantMsg: "not a valid host:port",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *config.Config) { c.Server.TimeoutMS = -1 },
			wantMsg: "server.timeout_ms must be >= 0",
		},
		{
			name:    "no providers",
			mutate:  func(c *config.Config) { c.Providers = nil },
			wantMsg: "at least one provider is required",
		},
		{
			name:    "provider without name",
			mutate:  func(c *config.Config) { c.Providers[0].Name = "" },
			wantMsg: "providers[0].name is required",
		},
		{
			name: "duplicate provider name",
			mutate: func(c *config.Config) {
				c.Providers[1].Name = "api"
				c.Routing.Routes[0].Fallbacks = nil
			},
			wantMsg: "is duplicated",
		},
		{
			name:    "provider without base_url",
			mutate:  func(c *config.Config) { c.Providers[0].BaseURL = "" },
			wantMsg: `provider "api": base_url is required`,
		},
		{
			name:    "provider with bad base_url",
			mutate:  func(c *config.Config) { c.Providers[0].BaseURL = "not a url" },
			wantMsg: "is not a valid URL",
		},
		{
			name:    "probe path without slash",
			mutate:  func(c *config.Config) { c.Providers[0].ProbePath = "healthz" },
			wantMsg: "probe_path must start with /",
		},
		{
			name:    "negative rpm limit",
			mutate:  func(c *config.Config) { c.Providers[0].RPMLimit = -1 },
			wantMsg: "rpm_limit must be >= 0",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *config.Config) { c.Routing.Strategy = "weighted" },
			wantMsg: `routing.strategy "weighted"`,
		},
		{
			name:    "unknown default provider",
			mutate:  func(c *config.Config) { c.Routing.DefaultProvider = "ghost" },
			wantMsg: `routing.default_provider "ghost"`,
		},
		{
			name:    "route without model",
			mutate:  func(c *config.Config) { c.Routing.Routes[0].Model = "" },
			wantMsg: "routing.routes[0].model is required",
		},
		{
			name: "duplicate route model",
			mutate: func(c *config.Config) {
				c.Routing.Routes = append(c.Routing.Routes,
					config.RouteConfig{Model: "gpt-x", Primary: "api"})
			},
			wantMsg: `model "gpt-x" is duplicated`,
		},
		{
			name:    "route with unknown primary",
			mutate:  func(c *config.Config) { c.Routing.Routes[0].Primary = "ghost" },
			wantMsg: `primary "ghost" is not a configured provider`,
		},
		{
			name: "route with unknown fallback",
			mutate: func(c *config.Config) {
				c.Routing.Routes[0].Fallbacks = []string{"ghost"}
			},
			wantMsg: `fallback "ghost" is not a configured provider`,
		},
		{
			name:    "pool max_size unset",
			mutate:  func(c *config.Config) { c.Pool.MaxSize = 0 },
			wantMsg: "pool.max_size is required",
		},
		{
			name:    "pool max_idle unset",
			mutate:  func(c *config.Config) { c.Pool.MaxIdleSeconds = 0 },
			wantMsg: "pool.max_idle_seconds is required",
		},
		{
			name:    "pool max_lifetime unset",
			mutate:  func(c *config.Config) { c.Pool.MaxLifetimeSeconds = 0 },
			wantMsg: "pool.max_lifetime_seconds is required",
		},
		{
			name:    "pool max_uses unset",
			mutate:  func(c *config.Config) { c.Pool.MaxUses = 0 },
			wantMsg: "pool.max_uses is required",
		},
		{
			name:    "registry idle threshold unset",
			mutate:  func(c *config.Config) { c.Registry.IdleThresholdSeconds = 0 },
			wantMsg: "registry.idle_threshold_seconds is required",
		},
		{
			name:    "registry sweep interval unset",
			mutate:  func(c *config.Config) { c.Registry.SweepIntervalSeconds = 0 },
			wantMsg: "registry.sweep_interval_seconds is required",
		},
		{
			name:    "health failure threshold unset",
			mutate:  func(c *config.Config) { c.Health.FailureThreshold = 0 },
			wantMsg: "health.failure_threshold is required",
		},
		{
			name:    "health recovery threshold unset",
			mutate:  func(c *config.Config) { c.Health.RecoveryThreshold = 0 },
			wantMsg: "health.recovery_threshold is required",
		},
		{
			name:    "health probe interval unset",
			mutate:  func(c *config.Config) { c.Health.ProbeIntervalMS = 0 },
			wantMsg: "health.probe_interval_ms is required",
		},
		{
			name:    "health probe timeout negative",
			mutate:  func(c *config.Config) { c.Health.ProbeTimeoutMS = -1 },
			wantMsg: "health.probe_timeout_ms must be >= 0",
		},
		{
			name:    "cache mode missing",
			mutate:  func(c *config.Config) { c.Cache.Mode = "" },
			wantMsg: "cache: mode is required",
		},
		{
			name: "cache local without sizing",
			mutate: func(c *config.Config) {
				c.Cache = cache.Config{Mode: cache.ModeLocal}
			},
			wantMsg: "ristretto.max_cost must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validBase()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := validBase()
	cfg.Server.Listen = ""
	cfg.Pool.MaxSize = 0
	cfg.Health.FailureThreshold = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}

	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error is %T, want *ValidationError", err)
	}
	if len(verr.Errors) < 3 {
		t.Errorf("collected %d errors, want >= 3: %v", len(verr.Errors), verr.Errors)
	}
}

func TestValidationErrorFormatting(t *testing.T) {
	t.Parallel()

	empty := &config.ValidationError{}
	if empty.Error() != "config validation failed" {
		t.Errorf("empty Error() = %q", empty.Error())
	}
	if empty.HasErrors() {
		t.Error("empty HasErrors() = true")
	}
	if empty.ToError() != nil {
		t.Error("empty ToError() != nil")
	}

	single := &config.ValidationError{}
	single.Add("server.listen is required")
	if !strings.Contains(single.Error(), "server.listen is required") {
		t.Errorf("single Error() = %q", single.Error())
	}

	multi := &config.ValidationError{}
	multi.Add("first")
	multi.Addf("second %d", 2)
	if !strings.Contains(multi.Error(), "2 errors") {
		t.Errorf("multi Error() = %q", multi.Error())
	}
}
