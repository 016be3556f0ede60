// Package health provides debounced provider health tracking for agenthost.
//
// Each provider carries exactly two states:
//
//	Healthy --(failure_threshold consecutive failures)--> Unhealthy
//	Unhealthy --(recovery_threshold consecutive successes)--> Healthy
//
// Counters are fed from two sources: the periodic prober and in-call
// failures reported by the router. The thresholds debounce single transient
// errors so the state never flaps.
package health

import "time"

// defaultProbeTimeout bounds one probe request when no timeout is configured.
const defaultProbeTimeout = 5 * time.Second

// Config defines health tracking behavior. The thresholds and the probe
// interval are required configuration; config validation rejects absent
// values rather than assuming defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// transition a provider to Unhealthy.
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryThreshold is the number of consecutive successes that
	// transition a provider back to Healthy.
	RecoveryThreshold int `yaml:"recovery_threshold"`

	// ProbeIntervalMS is the time between probe sweeps, in milliseconds.
	ProbeIntervalMS int `yaml:"probe_interval_ms"`

	// ProbeTimeoutMS bounds a single probe request. Zero means 5 seconds.
	ProbeTimeoutMS int `yaml:"probe_timeout_ms"`

	// Enabled toggles the background prober. Defaults to true when omitted.
	// In-call failure reporting is always active regardless.
	Enabled *bool `yaml:"enabled"`
}

// GetProbeInterval returns the probe interval as a duration.
func (c *Config) GetProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalMS) * time.Millisecond
}

// GetProbeTimeout returns the per-probe timeout, defaulting to 5s.
func (c *Config) GetProbeTimeout() time.Duration {
	if c.ProbeTimeoutMS <= 0 {
		return defaultProbeTimeout
	}
	return time.Duration(c.ProbeTimeoutMS) * time.Millisecond
}

// IsEnabled returns whether the background prober runs.
func (c *Config) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}
