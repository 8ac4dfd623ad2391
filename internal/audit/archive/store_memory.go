package archive

import (
	"context"
	"sync"

	"caretrust/internal/audit"
)

// InMemoryStore keeps archived records in memory for tests and single-node
// development setups.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor string) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Record
	for _, rec := range s.records {
		if rec.Actor == actor {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Record{}, s.records[start:]...), nil
}
