// Package seen tracks the canonical IDs that have already been alerted.
package seen

import (
	"sort"
	"sync"
)

// Set is the in-memory seen set. It only grows.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSet returns a set holding ids.
func NewSet(ids ...string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id has been recorded.
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Record adds id and reports whether it was new.
func (s *Set) Record(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of recorded IDs.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// IDs returns the recorded IDs sorted ascending.
func (s *Set) IDs() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
