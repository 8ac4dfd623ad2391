package consent

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps consent records in memory for tests and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func key(subjectID, purpose string) string {
	return subjectID + ":" + purpose
}

func (s *InMemoryStore) Grant(_ context.Context, subjectID, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(subjectID, purpose)] = Record{
		SubjectID: subjectID,
		Purpose:   purpose,
		Granted:   true,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, subjectID, purpose string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key(subjectID, purpose)] = Record{
		SubjectID: subjectID,
		Purpose:   purpose,
		Granted:   false,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (s *InMemoryStore) HasConsent(_ context.Context, subjectID, purpose string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key(subjectID, purpose)]
	return ok && rec.Granted, nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.SubjectID == subjectID {
			out = append(out, rec)
		}
	}
	return out, nil
}
