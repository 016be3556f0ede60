package router

import (
	lom "github.com/samber/lo/mutable"
)

// RandomStrategy picks uniformly among healthy candidates. The full order
// is a fresh shuffle per call, so fallback attempts are spread evenly too.
type RandomStrategy struct{}

// NewRandomStrategy creates a random strategy.
func NewRandomStrategy() *RandomStrategy {
	return &RandomStrategy{}
}

// Order returns a uniform shuffle of the healthy candidates.
func (s *RandomStrategy) Order(_ string, healthy []Candidate) []Candidate {
	ordered := make([]Candidate, len(healthy))
	copy(ordered, healthy)
	lom.Shuffle(ordered)
	return ordered
}

// Name returns the strategy name.
func (s *RandomStrategy) Name() string {
	return StrategyRandom
}
