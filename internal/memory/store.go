// Package memory provides the agent's shared key/value store.
//
// The key set is closed: every key a component reads or writes is
// declared here, and the store is passed explicitly through
// constructors rather than discovered at call sites.
package memory

import "sync"

// Key identifies a slot in the store.
type Key string

// The closed set of keys.
const (
	// KeyLastTarget holds the last known movement target ([3]float64).
	KeyLastTarget Key = "last_target"
	// KeyPendingRole holds an externally requested role switch (string).
	KeyPendingRole Key = "pending_role"
	// KeyPendingReflection holds the id of the reflection entry awaiting
	// finalization for the current task line (string).
	KeyPendingReflection Key = "pending_reflection"
	// KeyActiveStructure holds the structure id of the building job in
	// progress (string).
	KeyActiveStructure Key = "active_structure"
)

// Store is a thread-safe key/value store over the closed key set.
type Store struct {
	mu     sync.RWMutex
	values map[Key]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[Key]any)}
}

// Get returns the value for key and whether it is set.
func (s *Store) Get(key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value for key.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key from the store.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Take returns the value for key and removes it in one step.
// Used for consume-once slots like the pending role switch.
func (s *Store) Take(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if ok {
		delete(s.values, key)
	}
	return v, ok
}

// GetString returns the value for key as a string, or "" when unset or
// not a string.
func (s *Store) GetString(key Key) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}
