package content

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	jobs       map[int64]Job
	candidates map[int64]Candidate
	documents  map[string]Document
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[int64]Job),
		candidates: make(map[int64]Candidate),
		documents:  make(map[string]Document),
	}
}

// PutJob stores or replaces a job.
func (m *MemoryStore) PutJob(job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

// PutCandidate stores or replaces a candidate.
func (m *MemoryStore) PutCandidate(candidate Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates[candidate.ID] = candidate
}

// PutDocument stores or replaces a document.
func (m *MemoryStore) PutDocument(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[documentKey(doc.EntityType, doc.ID)] = doc
}

// DeleteDocument removes a document.
func (m *MemoryStore) DeleteDocument(entityType string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, documentKey(entityType, id))
}

func (m *MemoryStore) GetJob(_ context.Context, id int64) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return &job, nil
}

func (m *MemoryStore) GetCandidate(_ context.Context, id int64) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidate, ok := m.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %d: %w", id, ErrNotFound)
	}
	return &candidate, nil
}

func (m *MemoryStore) GetCandidateByUser(_ context.Context, userID int64) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, candidate := range m.sortedCandidates() {
		if candidate.UserID == userID {
			return &candidate, nil
		}
	}
	return nil, fmt.Errorf("candidate for user %d: %w", userID, ErrNotFound)
}

func (m *MemoryStore) GetDocument(_ context.Context, entityType string, id int64) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[documentKey(entityType, id)]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", entityType, id, ErrNotFound)
	}
	return &doc, nil
}

func (m *MemoryStore) ListActiveCandidates(_ context.Context, tenantID int64) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Candidate, 0)
	for _, candidate := range m.sortedCandidates() {
		if candidate.Active && candidate.TenantID == tenantID {
			out = append(out, candidate)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListJobs(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListCandidates(_ context.Context) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedCandidates(), nil
}

func (m *MemoryStore) ListDocuments(_ context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.documents))
	for _, doc := range m.documents {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) sortedCandidates() []Candidate {
	out := make([]Candidate, 0, len(m.candidates))
	for _, candidate := range m.candidates {
		out = append(out, candidate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func documentKey(entityType string, id int64) string {
	return fmt.Sprintf("%s/%d", entityType, id)
}
