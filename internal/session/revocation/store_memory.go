package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"caretrust/pkg/platform/sentinel"
)

// InMemoryStore keeps family state in process memory for tests and
// single-instance deployments. TTLs are honored lazily on read.
type InMemoryStore struct {
	mu       sync.RWMutex
	families map[string]entry
	revoked  map[string]time.Time
}

type entry struct {
	jti       string
	expiresAt time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		families: make(map[string]entry),
		revoked:  make(map[string]time.Time),
	}
}

func (s *InMemoryStore) Bind(_ context.Context, familyID, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[familyID] = entry{jti: jti, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Current(_ context.Context, familyID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.families[familyID]
	if !ok || time.Now().After(e.expiresAt) {
		return "", fmt.Errorf("family %q: %w", familyID, sentinel.ErrNotFound)
	}
	return e.jti, nil
}

func (s *InMemoryStore) Advance(_ context.Context, familyID, newJTI string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[familyID] = entry{jti: newJTI, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) RevokeFamily(_ context.Context, familyID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.families, familyID)
	s.revoked[familyID] = time.Now().Add(ttl)
	return nil
}

func (s *InMemoryStore) IsFamilyRevoked(_ context.Context, familyID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.revoked[familyID]
	return ok && time.Now().Before(until), nil
}
