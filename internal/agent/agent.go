// Package agent provides the per-session execution context.
//
// An Agent is the stateful handle a session owns: it carries the session's
// execution mode and issues completion requests through the router, with an
// optional response cache in front. The agent's reasoning loop and tool
// surface live outside this runtime; this type is the hosting contract.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kestrelhq/agenthost/internal/providers"
)

// Completer executes a completion against a model's provider candidates.
// *router.Router satisfies this.
type Completer interface {
	ExecuteWithFallback(ctx context.Context, model string, req *providers.Request) (*providers.Response, error)
}

// Agent is one session's execution context. All methods are safe for
// concurrent use.
type Agent struct {
	sessionID string
	agentID   string
	createdAt time.Time
	completer Completer
	cache     *CompletionCache
	logger    *zerolog.Logger

	mu   sync.RWMutex
	mode ExecutionMode
}

// New creates an Agent for a session. The cache may be nil.
func New(sessionID string, completer Completer, cc *CompletionCache, logger *zerolog.Logger) *Agent {
	return &Agent{
		sessionID: sessionID,
		agentID:   uuid.NewString(),
		createdAt: time.Now(),
		completer: completer,
		cache:     cc,
		logger:    logger,
		mode:      ModeInteractive,
	}
}

// SessionID returns the owning session's identifier.
func (a *Agent) SessionID() string {
	return a.sessionID
}

// ID returns the agent instance identifier.
func (a *Agent) ID() string {
	return a.agentID
}

// CreatedAt returns when the agent was created.
func (a *Agent) CreatedAt() time.Time {
	return a.createdAt
}

// ExecutionMode returns the current execution mode.
func (a *Agent) ExecutionMode() ExecutionMode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// SetExecutionMode changes the execution mode in place.
func (a *Agent) SetExecutionMode(mode ExecutionMode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()

	if a.logger != nil {
		a.logger.Debug().
			Str("session_id", a.sessionID).
			Str("mode", mode.String()).
			Msg("execution mode updated")
	}
}

// Complete issues a completion for the agent's session. Cached responses
// short-circuit the router; fresh responses are cached on the way out.
func (a *Agent) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	if resp := a.cache.Get(ctx, req); resp != nil {
		if a.logger != nil {
			a.logger.Debug().
				Str("session_id", a.sessionID).
				Str("model", req.Model).
				Msg("completion served from cache")
		}
		return resp, nil
	}

	resp, err := a.completer.ExecuteWithFallback(ctx, req.Model, req)
	if err != nil {
		return nil, err
	}

	a.cache.Set(ctx, req, resp)
	return resp, nil
}

// Close releases the agent. Called by the registry on removal.
func (a *Agent) Close() error {
	if a.logger != nil {
		a.logger.Debug().
			Str("session_id", a.sessionID).
			Str("agent_id", a.agentID).
			Msg("agent closed")
	}
	return nil
}
