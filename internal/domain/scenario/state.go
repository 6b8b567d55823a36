package scenario

import "sync"

// ActiveState is the single mutable slot holding the currently selected
// scenario name. Written rarely (CLI default or the admin selector), read on
// every request. The RWMutex guarantees readers observe the latest write.
type ActiveState struct {
	mu   sync.RWMutex
	name string
}

// NewActiveState creates an empty slot.
func NewActiveState() *ActiveState {
	return &ActiveState{}
}

// Get returns the active scenario name, or false when none is selected.
func (s *ActiveState) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name, s.name != ""
}

// Set selects a scenario by name. An empty name clears the slot.
func (s *ActiveState) Set(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Clear deselects the active scenario.
func (s *ActiveState) Clear() {
	s.Set("")
}
