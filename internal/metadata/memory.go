package metadata

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process memory. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func memoryKey(tenantID, eventID string) string {
	return tenantID + "\x00" + eventID
}

// Put upserts the record.
func (s *MemoryStore) Put(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey(record.TenantID, record.EventID)
	if _, exists := s.records[k]; !exists {
		s.order = append(s.order, k)
	}
	s.records[k] = *record
	return nil
}

// Get returns the record for (tenantID, eventID).
func (s *MemoryStore) Get(tenantID, eventID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[memoryKey(tenantID, eventID)]
	return r, ok
}

// All returns records in first-insertion order.
func (s *MemoryStore) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.records[k])
	}
	return out
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
