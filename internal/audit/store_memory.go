package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"aeroledger/pkg/platform/sentinel"
)

// MemoryStore keeps entries in append order. Backs tests and broker-less
// development runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, entry Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	// Millisecond precision so the hashed timestamp round-trips any backend.
	entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	entry.PrevHash = ""
	entry.Hash = ""
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *MemoryStore) SetChain(ctx context.Context, id, prevHash, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].PrevHash = prevHash
			s.entries[i].Hash = hash
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *MemoryStore) Latest(ctx context.Context, resource, resourceID string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Resource == resource && e.ResourceID == resourceID {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *MemoryStore) ListAsc(ctx context.Context, filters Filters, limit, offset int) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Entry
	for _, e := range s.entries {
		if filters.Resource != "" && e.Resource != filters.Resource {
			continue
		}
		if filters.ResourceID != "" && e.ResourceID != filters.ResourceID {
			continue
		}
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	out := make([]Entry, len(matched))
	copy(out, matched)
	return out, total, nil
}

// Tamper overwrites a stored entry in place. Test hook for chain breakage;
// never called by production code.
func (s *MemoryStore) Tamper(index int, mutate func(*Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.entries[index])
}
