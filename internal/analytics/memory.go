package analytics

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps the query log in process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryStore) CountSince(_ context.Context, hash string, tenantID *int64, classes []Classification, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries {
		if e.QueryHash == hash && SameTenant(e.TenantID, tenantID) &&
			!e.CreatedAt.Before(since) && slices.Contains(classes, e.Classification) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ListSince(_ context.Context, tenantID *int64, since time.Time) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, e := range m.entries {
		if SameTenant(e.TenantID, tenantID) && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
