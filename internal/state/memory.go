package state

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryStore holds documents in memory. Documents round-trip through YAML
// so callers get the same decoding behavior as FileStore, which makes this
// the drop-in store for tests and for running without a state directory.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Load reads the document saved under key into v.
func (s *MemoryStore) Load(key string, v any) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	s.mu.Lock()
	data, ok := s.docs[key]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing state %s: %w", key, err)
	}
	return nil
}

// Save replaces the document saved under key with v.
func (s *MemoryStore) Save(key string, v any) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling state %s: %w", key, err)
	}
	s.mu.Lock()
	s.docs[key] = data
	s.mu.Unlock()
	return nil
}
