package router

// PriorityStrategy attempts candidates in configured order, primary first.
// Stateless; the order is stable across calls.
type PriorityStrategy struct{}

// NewPriorityStrategy creates a priority strategy.
func NewPriorityStrategy() *PriorityStrategy {
	return &PriorityStrategy{}
}

// Order returns the healthy candidates unchanged.
func (s *PriorityStrategy) Order(_ string, healthy []Candidate) []Candidate {
	return healthy
}

// Name returns the strategy name.
func (s *PriorityStrategy) Name() string {
	return StrategyPriority
}
