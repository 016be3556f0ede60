package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/kestrelhq/agenthost/internal/agent"
	"github.com/kestrelhq/agenthost/internal/cache"
	"github.com/kestrelhq/agenthost/internal/config"
	"github.com/kestrelhq/agenthost/internal/health"
	"github.com/kestrelhq/agenthost/internal/pool"
	"github.com/kestrelhq/agenthost/internal/providers"
	"github.com/kestrelhq/agenthost/internal/registry"
	"github.com/kestrelhq/agenthost/internal/router"
	"github.com/kestrelhq/agenthost/internal/version"
)

// SessionHeader identifies the logical session on completion requests.
const SessionHeader = "X-Session-Id"

// defaultMaxBodyBytes bounds request bodies when no limit is configured.
const defaultMaxBodyBytes = 10 << 20

// Handler serves the agenthost HTTP surface.
type Handler struct {
	registry *registry.Registry
	pool     *pool.Pool
	tracker  *health.Tracker
	cache    cache.Cache
	runtime  config.RuntimeConfig
	logger   zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(
	reg *registry.Registry,
	p *pool.Pool,
	tracker *health.Tracker,
	c cache.Cache,
	runtime config.RuntimeConfig,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		registry: reg,
		pool:     p,
		tracker:  tracker,
		cache:    c,
		runtime:  runtime,
		logger:   logger,
	}
}

// Routes returns the handler's route table wrapped in request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("POST /v1/complete", h.handleComplete)
	mux.HandleFunc("POST /v1/sessions/{id}/touch", h.handleTouch)
	mux.HandleFunc("POST /v1/sessions/{id}/mode", h.handleMode)
	mux.HandleFunc("DELETE /v1/sessions/{id}", h.handleRemove)
	return h.withRequestLog(mux)
}

// withRequestLog assigns each request an ID and logs its outcome.
func (h *Handler) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		h.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Version        string                   `json:"version"`
	Sessions       registry.Metrics         `json:"sessions"`
	Pool           pool.Metrics             `json:"pool"`
	PoolByProvider map[string]pool.Metrics  `json:"pool_by_provider"`
	Providers      map[string]health.Status `json:"providers"`
	Cache          *cache.Stats             `json:"cache,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Version:        version.Version,
		Sessions:       h.registry.SnapshotMetrics(),
		Pool:           h.pool.Stats(),
		PoolByProvider: h.pool.StatsByProvider(),
		Providers:      h.tracker.Snapshot(),
	}
	if sp, ok := h.cache.(cache.StatsProvider); ok {
		stats := sp.Stats()
		resp.Cache = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing "+SessionHeader+" header")
		return
	}

	maxBody := h.runtime.Get().Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		writeError(w, http.StatusBadRequest, "missing model field")
		return
	}

	ctx := r.Context()
	if timeout, ok := h.runtime.Get().Server.GetTimeoutOption().Get(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	a, err := h.registry.GetOrCreate(ctx, sessionID)
	if err != nil {
		h.logger.Error().Str("session_id", sessionID).Err(err).Msg("session creation failed")
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}

	if err := h.registry.BeginRequest(sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	defer func() {
		_ = h.registry.EndRequest(sessionID)
	}()

	resp, err := a.Complete(ctx, &providers.Request{Model: model, Body: body})
	if err != nil {
		h.writeCompletionError(w, sessionID, model, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Provider", resp.Provider)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// writeCompletionError maps completion failures to HTTP statuses.
func (h *Handler) writeCompletionError(w http.ResponseWriter, sessionID, model string, err error) {
	h.logger.Warn().
		Str("session_id", sessionID).
		Str("model", model).
		Err(err).
		Msg("completion failed")

	switch {
	case errors.Is(err, router.ErrNoRoute):
		writeError(w, http.StatusBadRequest, "no route for model")
	case errors.Is(err, pool.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "provider rate limit exceeded")
	case errors.Is(err, pool.ErrPoolExhausted):
		writeError(w, http.StatusServiceUnavailable, "all provider clients in use")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "completion timed out")
	default:
		writeError(w, http.StatusBadGateway, "all providers failed")
	}
}

func (h *Handler) handleTouch(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if err := h.registry.Touch(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4096))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode, err := agent.ParseExecutionMode(gjson.GetBytes(body, "mode").String())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.UpdateExecutionMode(sessionID, mode); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	err := h.registry.Remove(sessionID)
	switch {
	case errors.Is(err, registry.ErrSessionBusy):
		writeError(w, http.StatusConflict, "session has requests in flight")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to remove session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
