// Package providers defines client handles for upstream model-serving backends.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrProviderNotConfigured is returned by the factory for an unknown provider key.
var ErrProviderNotConfigured = errors.New("providers: provider not configured")

// Request is a completion request as seen by a provider client.
// The payload shape is owned by the caller; clients only rewrite the model
// field when a mapping is configured.
type Request struct {
	// Model is the logical model name requested by the caller.
	Model string

	// Body is the raw JSON request payload.
	Body []byte
}

// Response is a completion response from a provider.
type Response struct {
	// Provider is the provider key that served the request.
	Provider string

	// Model is the provider-side model name the request was served with.
	Model string

	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Body is the raw response payload.
	Body []byte
}

// Client is a single reusable connection to one provider. Clients are owned
// by the pool while idle and lent to one caller at a time while checked out.
type Client interface {
	// Provider returns the provider key this client is bound to.
	Provider() string

	// ID identifies this client instance for logging and tests.
	ID() string

	// Complete issues a completion request and returns the response.
	// Transport failures and upstream 5xx/429 statuses return a non-nil
	// error so the router can fail over.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases the client's resources. Called by the pool when an
	// entry is discarded.
	Close() error
}

// StatusError is returned when the upstream answered with a failure status.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("providers: %s returned status %d", e.Provider, e.StatusCode)
}

// IsRetryable reports whether the status warrants trying another candidate.
// Rate limiting and server-side failures are retryable; client errors are not.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
