package template

import "sync"

// CounterStore backs the {{increment}} helper with one monotonic counter per
// scenario name. Counters are created lazily, live for the process lifetime
// and never reset; the mutex keeps increments unique under concurrent
// requests against the same scenario.
type CounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewCounterStore creates an empty store.
func NewCounterStore() *CounterStore {
	return &CounterStore{counters: make(map[string]int64)}
}

// Next increments the counter owned by the given scenario and returns its
// new value. The first call for a scenario returns 1.
func (s *CounterStore) Next(scenario string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[scenario]++
	return s.counters[scenario]
}

// Current returns the last value handed out for a scenario, 0 if unused.
func (s *CounterStore) Current(scenario string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[scenario]
}
