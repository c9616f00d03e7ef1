package indexer

import "sync"

// InFlightSet tracks slots that are pending in the request channel or being
// processed, so catchup never enqueues duplicate work. Producers add via
// TryAdd when enqueueing; the processor removes on completion, success or not.
type InFlightSet struct {
	mu    sync.Mutex
	slots map[uint64]struct{}
}

func NewInFlightSet() *InFlightSet {
	return &InFlightSet{slots: make(map[uint64]struct{})}
}

// TryAdd claims slot, returning false when it is already in flight.
func (s *InFlightSet) TryAdd(slot uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot]; ok {
		return false
	}
	s.slots[slot] = struct{}{}
	return true
}

func (s *InFlightSet) Remove(slot uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, slot)
}

func (s *InFlightSet) Contains(slot uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[slot]
	return ok
}

func (s *InFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
