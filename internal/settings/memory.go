// SPDX-License-Identifier: MIT
package settings

import (
	"sync"

	"dspctl/internal/dsp"
)

// MemoryStore keeps preferences in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	values    map[dsp.Namespace]map[string]any
	committed map[dsp.Namespace]map[string]any
}

// NewMemoryStore returns a store seeded with initial values. Nothing is
// committed yet.
func NewMemoryStore(initial map[dsp.Namespace]map[string]any) *MemoryStore {
	s := &MemoryStore{values: make(map[dsp.Namespace]map[string]any)}
	if initial != nil {
		s.values = copyValues(initial)
	}
	return s
}

// Select returns a snapshot of one namespace. Later writes are not visible
// through the returned Section.
func (s *MemoryStore) Select(ns dsp.Namespace) Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := make(valueSection, len(s.values[ns]))
	for k, v := range s.values[ns] {
		sec[k] = v
	}
	return sec
}

func (s *MemoryStore) ChangedNamespaces() dsp.NamespaceSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return diffNamespaces(s.values, s.committed)
}

func (s *MemoryStore) MarkChangesAsCommitted() {
	s.mu.Lock()
	s.committed = copyValues(s.values)
	s.mu.Unlock()
}

func (s *MemoryStore) Capture() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return captureState(s.values, s.committed)
}

func (s *MemoryStore) MarkCommitted(st State) {
	s.mu.Lock()
	s.committed = copyValues(st.values)
	s.mu.Unlock()
}

// Clear forgets the committed state; every namespace reads as changed.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.committed = nil
	s.mu.Unlock()
}

// Put merges values into a namespace.
func (s *MemoryStore) Put(ns dsp.Namespace, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.values[ns]
	if m == nil {
		m = make(map[string]any, len(values))
		s.values[ns] = m
	}
	for k, v := range values {
		m[k] = v
	}
	return nil
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Writer = (*MemoryStore)(nil)
)
