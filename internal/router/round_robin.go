package router

import "sync"

// RoundRobinStrategy rotates through healthy candidates with one cursor per
// route, advancing on every call and wrapping at the end of the filtered
// list. Fallbacks continue from the rotation point.
type RoundRobinStrategy struct {
	mu      sync.Mutex
	cursors map[string]int
}

// NewRoundRobinStrategy creates a round-robin strategy.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{
		cursors: make(map[string]int),
	}
}

// Order rotates the healthy candidates by the route's cursor.
func (s *RoundRobinStrategy) Order(routeKey string, healthy []Candidate) []Candidate {
	s.mu.Lock()
	cursor := s.cursors[routeKey]
	s.cursors[routeKey] = cursor + 1
	s.mu.Unlock()

	start := cursor % len(healthy)
	ordered := make([]Candidate, 0, len(healthy))
	ordered = append(ordered, healthy[start:]...)
	ordered = append(ordered, healthy[:start]...)
	return ordered
}

// Name returns the strategy name.
func (s *RoundRobinStrategy) Name() string {
	return StrategyRoundRobin
}
