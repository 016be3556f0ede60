package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"
)

// completionPath is the endpoint completion requests are posted to,
// relative to the provider base URL.
const completionPath = "/v1/messages"

// defaultRequestTimeout bounds a single completion call when the caller's
// context carries no deadline.
const defaultRequestTimeout = 120 * time.Second

// httpClient is the standard Client implementation: one dedicated
// http.Client (and so one connection pool) per instance, which is what makes
// pooling these handles worthwhile.
type httpClient struct {
	id           string
	name         string
	baseURL      string
	apiKey       string
	modelMapping map[string]string
	http         *http.Client
}

var _ Client = (*httpClient)(nil)

// newHTTPClient creates a client bound to one provider endpoint.
func newHTTPClient(name, baseURL, apiKey string, modelMapping map[string]string) *httpClient {
	return &httpClient{
		id:           uuid.NewString(),
		name:         name,
		baseURL:      baseURL,
		apiKey:       apiKey,
		modelMapping: modelMapping,
		http: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Provider returns the provider key this client is bound to.
func (c *httpClient) Provider() string {
	return c.name
}

// ID identifies this client instance.
func (c *httpClient) ID() string {
	return c.id
}

// MapModel maps a logical model name to the provider-specific one.
// Unmapped names pass through unchanged.
func (c *httpClient) MapModel(model string) string {
	if mapped, ok := c.modelMapping[model]; ok {
		return mapped
	}
	return model
}

// Complete posts the request payload to the provider, rewriting the model
// field when a mapping applies. The raw response body is returned as-is.
func (c *httpClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	body := req.Body
	model := c.MapModel(req.Model)

	if model != req.Model {
		rewritten, err := sjson.SetBytes(body, "model", model)
		if err != nil {
			return nil, fmt.Errorf("providers: rewrite model: %w", err)
		}
		body = rewritten
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("providers: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("providers: %s: %w", c.name, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Ctx(ctx).Debug().Err(closeErr).Msg("close response body")
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: %s: read response: %w", c.name, err)
	}

	log.Ctx(ctx).Debug().
		Str("provider", c.name).
		Str("model", model).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("completion call")

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
	}

	return &Response{
		Provider:   c.name,
		Model:      model,
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}

// Close releases idle connections held by this client.
func (c *httpClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
