package store

import (
	"slices"
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps classrooms keyed by ID together with their insertion
// order, so [MemoryStore.List] is deterministic. Overwriting an existing ID
// keeps its original position.
type MemoryStore struct {
	mu         sync.RWMutex
	classrooms map[string]Classroom
	order      []string
}

// NewMemoryStore creates a new, empty [MemoryStore].
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		classrooms: make(map[string]Classroom),
	}
}

// Get returns a copy of the classroom with the given id.
func (m *MemoryStore) Get(id string) (Classroom, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.classrooms[id]
	if !ok {
		return Classroom{}, false
	}
	return c.Clone(), true
}

// List returns a snapshot of all classrooms in insertion order.
//
// The returned slice is a copy; modifications do not affect the store.
func (m *MemoryStore) List() []Classroom {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Classroom, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.classrooms[id].Clone())
	}
	return result
}

// Put stores a copy of the classroom.
func (m *MemoryStore) Put(c Classroom) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putLocked(c)
}

// Delete removes the classroom with the given id.
func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.classrooms[id]; !ok {
		return false
	}
	delete(m.classrooms, id)
	m.order = slices.DeleteFunc(m.order, func(v string) bool { return v == id })
	return true
}

// ReplaceAll swaps the whole contents of the store.
//
// IDs are taken from the input as-is. When the input repeats an ID, the later
// value wins and the earlier position is kept.
func (m *MemoryStore) ReplaceAll(classrooms []Classroom) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.classrooms = make(map[string]Classroom, len(classrooms))
	m.order = make([]string, 0, len(classrooms))
	for _, c := range classrooms {
		m.putLocked(c)
	}
}

// Len returns the number of stored classrooms.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.classrooms)
}

// putLocked must be called with mu held for writing.
func (m *MemoryStore) putLocked(c Classroom) {
	if _, exists := m.classrooms[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.classrooms[c.ID] = c.Clone()
}
