package providers

import (
	"fmt"
	"strings"
	"sync"
)

// Endpoint is the static description of one configured provider.
type Endpoint struct {
	// Name is the provider key.
	Name string

	// BaseURL is the backend API base URL.
	BaseURL string

	// APIKey is the credential for completion requests.
	APIKey string

	// ProbePath is the health probe path, relative to BaseURL.
	// Empty means BaseURL itself.
	ProbePath string

	// ModelMapping rewrites logical model names per provider.
	ModelMapping map[string]string
}

// ProbeURL returns the absolute URL the health checker should probe.
func (e Endpoint) ProbeURL() string {
	if e.ProbePath == "" {
		return e.BaseURL
	}
	return strings.TrimSuffix(e.BaseURL, "/") + e.ProbePath
}

// Factory creates provider clients from configured endpoints.
// It is safe for concurrent use; the endpoint table may be swapped at
// runtime on config reload.
type Factory struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewFactory creates a Factory serving the given endpoints.
func NewFactory(endpoints []Endpoint) *Factory {
	f := &Factory{}
	f.SetEndpoints(endpoints)
	return f
}

// SetEndpoints replaces the endpoint table. Existing clients are unaffected;
// only future New calls see the new table.
func (f *Factory) SetEndpoints(endpoints []Endpoint) {
	table := make(map[string]Endpoint, len(endpoints))
	for _, e := range endpoints {
		table[e.Name] = e
	}
	f.mu.Lock()
	f.endpoints = table
	f.mu.Unlock()
}

// Endpoint returns the endpoint description for a provider key.
func (f *Factory) Endpoint(name string) (Endpoint, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.endpoints[name]
	return e, ok
}

// Names returns all configured provider keys.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.endpoints))
	for name := range f.endpoints {
		names = append(names, name)
	}
	return names
}

// New creates a fresh client for the given provider key.
// Returns ErrProviderNotConfigured for unknown keys.
func (f *Factory) New(name string) (Client, error) {
	e, ok := f.Endpoint(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	return newHTTPClient(e.Name, e.BaseURL, e.APIKey, e.ModelMapping), nil
}
