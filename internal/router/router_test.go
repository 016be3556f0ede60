package router_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kestrelhq/agenthost/internal/health"
	"github.com/kestrelhq/agenthost/internal/pool"
	"github.com/kestrelhq/agenthost/internal/providers"
	"github.com/kestrelhq/agenthost/internal/router"
)

// scriptedFactory builds clients whose completions fail while their
// provider is listed in failing. Attempts are counted per provider.
type scriptedFactory struct {
	mu       sync.Mutex
	failing  map[string]bool
	attempts map[string]int
}

func newScriptedFactory() *scriptedFactory {
	return &scriptedFactory{
		failing:  make(map[string]bool),
		attempts: make(map[string]int),
	}
}

func (f *scriptedFactory) setFailing(provider string, failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[provider] = failing
}

func (f *scriptedFactory) attemptCount(provider string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[provider]
}

func (f *scriptedFactory) New(name string) (providers.Client, error) {
	return &scriptedClient{factory: f, provider: name}, nil
}

type scriptedClient struct {
	factory  *scriptedFactory
	provider string
}

func (c *scriptedClient) Provider() string { return c.provider }
func (c *scriptedClient) ID() string       { return c.provider + "-client" }
func (c *scriptedClient) Close() error     { return nil }

func (c *scriptedClient) Complete(_ context.Context, req *providers.Request) (*providers.Response, error) {
	c.factory.mu.Lock()
	c.factory.attempts[c.provider]++
	failing := c.factory.failing[c.provider]
	c.factory.mu.Unlock()

	if failing {
		return nil, &providers.StatusError{Provider: c.provider, StatusCode: 503}
	}
	return &providers.Response{
		Provider:   c.provider,
		Model:      req.Model,
		StatusCode: 200,
		Body:       []byte(`{"ok":true}`),
	}, nil
}

type fixture struct {
	router  *router.Router
	tracker *health.Tracker
	factory *scriptedFactory
}

func newFixture(t *testing.T, rules []router.Rule, defaultProvider, strategy string) *fixture {
	t.Helper()

	factory := newScriptedFactory()
	p := pool.New(factory, pool.Config{
		MaxSize:     4,
		MaxIdle:     time.Minute,
		MaxLifetime: time.Hour,
		MaxUses:     1000,
	}, nil)
	t.Cleanup(func() { _ = p.Close() })

	tracker := health.NewTracker(health.Config{
		FailureThreshold:  3,
		RecoveryThreshold: 2,
		ProbeIntervalMS:   60000,
	}, nil)

	strat, err := router.NewStrategy(strategy)
	if err != nil {
		t.Fatalf("NewStrategy(%q) error = %v", strategy, err)
	}

	return &fixture{
		router:  router.New(router.NewTable(rules, defaultProvider), strat, p, tracker, nil),
		tracker: tracker,
		factory: factory,
	}
}

func TestTableCandidates(t *testing.T) {
	t.Parallel()

	table := router.NewTable([]router.Rule{
		{Model: "gpt-x", Primary: "api", Fallbacks: []string{"backup", "spare"}},
	}, "fallback")

	tests := []struct {
		name  string
		model string
		want  []string
	}{
		{name: "explicit route", model: "gpt-x", want: []string{"api", "backup", "spare"}},
		{name: "default provider", model: "unknown", want: []string{"fallback"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := table.Candidates(tt.model)
			if len(got) != len(tt.want) {
				t.Fatalf("Candidates(%q) = %v, want %v", tt.model, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Candidates(%q)[%d] = %q, want %q", tt.model, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTableNoDefaultProvider(t *testing.T) {
	t.Parallel()

	table := router.NewTable(nil, "")
	if got := table.Candidates("anything"); got != nil {
		t.Errorf("Candidates() = %v, want nil", got)
	}
}

func TestNewStrategyUnknown(t *testing.T) {
	t.Parallel()

	if _, err := router.NewStrategy("fastest"); err == nil {
		t.Error("NewStrategy(fastest) = nil error, want unknown strategy error")
	}
}

func TestPrioritySelectIsStable(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b", "c"}},
	}, "", router.StrategyPriority)

	for i := range 10 {
		got, err := fx.router.Select("gpt-x")
		if err != nil {
			t.Fatalf("Select() #%d error = %v", i+1, err)
		}
		if got != "a" {
			t.Fatalf("Select() #%d = %q, want %q", i+1, got, "a")
		}
	}
}

func TestRoundRobinRotation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyRoundRobin)

	want := []string{"a", "b", "a", "b"}
	for i, expected := range want {
		got, err := fx.router.Select("gpt-x")
		if err != nil {
			t.Fatalf("Select() #%d error = %v", i+1, err)
		}
		if got != expected {
			t.Errorf("Select() #%d = %q, want %q", i+1, got, expected)
		}
	}
}

func TestRoundRobinCursorsPerRoute(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
		{Model: "gpt-y", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyRoundRobin)

	// Advancing one route's cursor leaves the other route at its start.
	if got, _ := fx.router.Select("gpt-x"); got != "a" {
		t.Errorf("Select(gpt-x) = %q, want %q", got, "a")
	}
	if got, _ := fx.router.Select("gpt-y"); got != "a" {
		t.Errorf("Select(gpt-y) = %q, want %q", got, "a")
	}
	if got, _ := fx.router.Select("gpt-x"); got != "b" {
		t.Errorf("Select(gpt-x) = %q, want %q", got, "b")
	}
}

func TestRandomSelectsMember(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b", "c"}},
	}, "", router.StrategyRandom)

	members := map[string]bool{"a": true, "b": true, "c": true}
	for range 20 {
		got, err := fx.router.Select("gpt-x")
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if !members[got] {
			t.Fatalf("Select() = %q, not a candidate", got)
		}
	}
}

func TestSelectSkipsUnhealthy(t *testing.T) {
	t.Parallel()

	for _, strategy := range []string{router.StrategyPriority, router.StrategyFirstAvailable} {
		t.Run(strategy, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t, []router.Rule{
				{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
			}, "", strategy)

			for range 3 {
				fx.tracker.RecordFailure("a", errors.New("down"))
			}

			got, err := fx.router.Select("gpt-x")
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got != "b" {
				t.Errorf("Select() = %q, want %q", got, "b")
			}
		})
	}
}

func TestSelectAllUnhealthy(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyPriority)

	for _, provider := range []string{"a", "b"} {
		for range 3 {
			fx.tracker.RecordFailure(provider, errors.New("down"))
		}
	}

	if _, err := fx.router.Select("gpt-x"); !errors.Is(err, router.ErrAllProvidersFailed) {
		t.Errorf("Select() error = %v, want ErrAllProvidersFailed", err)
	}
}

func TestSelectNoRoute(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil, "", router.StrategyPriority)

	if _, err := fx.router.Select("gpt-x"); !errors.Is(err, router.ErrNoRoute) {
		t.Errorf("Select() error = %v, want ErrNoRoute", err)
	}
}

func TestExecuteWithFallbackPrimarySucceeds(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyPriority)

	resp, err := fx.router.ExecuteWithFallback(context.Background(), "gpt-x", &providers.Request{Model: "gpt-x"})
	if err != nil {
		t.Fatalf("ExecuteWithFallback() error = %v", err)
	}
	if resp.Provider != "a" {
		t.Errorf("Provider = %q, want %q", resp.Provider, "a")
	}
	if fx.factory.attemptCount("b") != 0 {
		t.Errorf("fallback attempted %d times, want 0", fx.factory.attemptCount("b"))
	}
}

func TestExecuteWithFallbackFailsOver(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyPriority)
	fx.factory.setFailing("a", true)

	resp, err := fx.router.ExecuteWithFallback(context.Background(), "gpt-x", &providers.Request{Model: "gpt-x"})
	if err != nil {
		t.Fatalf("ExecuteWithFallback() error = %v", err)
	}
	if resp.Provider != "b" {
		t.Errorf("Provider = %q, want %q", resp.Provider, "b")
	}
	if fx.factory.attemptCount("a") != 1 {
		t.Errorf("primary attempted %d times, want 1", fx.factory.attemptCount("a"))
	}
}

func TestExecuteWithFallbackAllFail(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyPriority)
	fx.factory.setFailing("a", true)
	fx.factory.setFailing("b", true)

	_, err := fx.router.ExecuteWithFallback(context.Background(), "gpt-x", &providers.Request{Model: "gpt-x"})
	if !errors.Is(err, router.ErrAllProvidersFailed) {
		t.Fatalf("ExecuteWithFallback() error = %v, want ErrAllProvidersFailed", err)
	}

	var statusErr *providers.StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("ExecuteWithFallback() error does not wrap the last attempt failure: %v", err)
	}
}

func TestExecuteWithFallbackSkipsUnhealthyPrimary(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyPriority)
	fx.factory.setFailing("a", true)

	// Three consecutive in-call failures cross the failure threshold.
	ctx := context.Background()
	for range 3 {
		if _, err := fx.router.ExecuteWithFallback(ctx, "gpt-x", &providers.Request{Model: "gpt-x"}); err != nil {
			t.Fatalf("ExecuteWithFallback() error = %v", err)
		}
	}
	if got := fx.tracker.State("a"); got != health.StateUnhealthy {
		t.Fatalf("State(a) = %v, want %v", got, health.StateUnhealthy)
	}

	attempts := fx.factory.attemptCount("a")
	resp, err := fx.router.ExecuteWithFallback(ctx, "gpt-x", &providers.Request{Model: "gpt-x"})
	if err != nil {
		t.Fatalf("ExecuteWithFallback() error = %v", err)
	}
	if resp.Provider != "b" {
		t.Errorf("Provider = %q, want %q", resp.Provider, "b")
	}
	if got := fx.factory.attemptCount("a"); got != attempts {
		t.Errorf("unhealthy primary attempted: %d -> %d, want unchanged", attempts, got)
	}
}

func TestExecuteWithFallbackFeedsRecovery(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: nil},
	}, "", router.StrategyPriority)

	fx.factory.setFailing("a", true)
	ctx := context.Background()
	for range 3 {
		_, _ = fx.router.ExecuteWithFallback(ctx, "gpt-x", &providers.Request{Model: "gpt-x"})
	}
	if got := fx.tracker.State("a"); got != health.StateUnhealthy {
		t.Fatalf("State(a) = %v, want %v", got, health.StateUnhealthy)
	}

	// Probe-driven recovery makes the provider routable again; live
	// successes then keep it healthy.
	fx.factory.setFailing("a", false)
	fx.tracker.RecordSuccess("a")
	fx.tracker.RecordSuccess("a")

	resp, err := fx.router.ExecuteWithFallback(ctx, "gpt-x", &providers.Request{Model: "gpt-x"})
	if err != nil {
		t.Fatalf("ExecuteWithFallback() after recovery error = %v", err)
	}
	if resp.Provider != "a" {
		t.Errorf("Provider = %q, want %q", resp.Provider, "a")
	}
}

func TestExecuteWithFallbackCancelled(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, []router.Rule{
		{Model: "gpt-x", Primary: "a", Fallbacks: []string{"b"}},
	}, "", router.StrategyPriority)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.router.ExecuteWithFallback(ctx, "gpt-x", &providers.Request{Model: "gpt-x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ExecuteWithFallback() error = %v, want context.Canceled", err)
	}
	if got := fx.tracker.State("a"); got != health.StateHealthy {
		t.Errorf("State(a) = %v after cancellation, want %v", got, health.StateHealthy)
	}
}
