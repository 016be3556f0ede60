package router

// FirstAvailableStrategy returns the first healthy candidate in list order.
// Behaviorally this matches priority ordering; the difference is contract,
// not mechanics: first_available promises nothing across calls and simply
// answers "first match now", so callers must not assume stability.
type FirstAvailableStrategy struct{}

// NewFirstAvailableStrategy creates a first-available strategy.
func NewFirstAvailableStrategy() *FirstAvailableStrategy {
	return &FirstAvailableStrategy{}
}

// Order returns the healthy candidates unchanged.
func (s *FirstAvailableStrategy) Order(_ string, healthy []Candidate) []Candidate {
	return healthy
}

// Name returns the strategy name.
func (s *FirstAvailableStrategy) Name() string {
	return StrategyFirstAvailable
}
