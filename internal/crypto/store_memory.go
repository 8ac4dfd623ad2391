package crypto

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryKeyStore holds key material in process memory. Suitable for tests
// and single-instance deployments; multi-instance deployments share keys
// through the Redis store instead.
type InMemoryKeyStore struct {
	mu       sync.RWMutex
	keys     map[string][]byte
	activeID string
}

// NewInMemoryKeyStore creates a store seeded with one freshly generated
// active key.
func NewInMemoryKeyStore() (*InMemoryKeyStore, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}
	return &InMemoryKeyStore{
		keys:     map[string][]byte{key.ID: key.Material},
		activeID: key.ID,
	}, nil
}

// NewInMemoryKeyStoreWithKey seeds the store with caller-provided material,
// e.g. a key loaded from a secrets manager.
func NewInMemoryKeyStoreWithKey(id string, material []byte) (*InMemoryKeyStore, error) {
	if id == "" || len(material) != keySize {
		return nil, fmt.Errorf("initial key must have an id and %d bytes of material", keySize)
	}
	return &InMemoryKeyStore{
		keys:     map[string][]byte{id: append([]byte(nil), material...)},
		activeID: id,
	}, nil
}

func (s *InMemoryKeyStore) ActiveKey(_ context.Context) (Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	material, ok := s.keys[s.activeID]
	if !ok {
		return Key{}, fmt.Errorf("active key %q: %w", s.activeID, ErrKeyNotFound)
	}
	return Key{ID: s.activeID, Material: material}, nil
}

func (s *InMemoryKeyStore) Key(_ context.Context, id string) (Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	material, ok := s.keys[id]
	if !ok {
		return Key{}, fmt.Errorf("key %q: %w", id, ErrKeyNotFound)
	}
	return Key{ID: id, Material: material}, nil
}

// Rotate generates a new key, makes it active, and retains all prior keys.
func (s *InMemoryKeyStore) Rotate(_ context.Context) (Key, error) {
	key, err := generateKey()
	if err != nil {
		return Key{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key.Material
	s.activeID = key.ID
	return key, nil
}

func (s *InMemoryKeyStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	return ids, nil
}
