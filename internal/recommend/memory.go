package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spigell/talentcore/internal/content"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu           sync.RWMutex
	applications map[int64]Application
	feedback     []FeedbackRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{applications: make(map[int64]Application)}
}

// AddApplication stores or replaces an application.
func (m *MemoryStore) AddApplication(app Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[app.ID] = app
}

func (m *MemoryStore) ListApplicationsByUser(_ context.Context, userID int64) ([]Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Application
	for _, app := range m.applications {
		if app.UserID == userID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListApplicantsForJob(_ context.Context, jobID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[int64]struct{})
	var out []int64
	for _, app := range m.applications {
		if app.JobID != jobID {
			continue
		}
		if _, ok := seen[app.UserID]; ok {
			continue
		}
		seen[app.UserID] = struct{}{}
		out = append(out, app.UserID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *MemoryStore) GetApplication(_ context.Context, id int64) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, ok := m.applications[id]
	if !ok {
		return nil, fmt.Errorf("application %d: %w", id, content.ErrNotFound)
	}
	return &app, nil
}

func (m *MemoryStore) AppendFeedback(_ context.Context, record FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.feedback {
		if existing.ApplicationID == record.ApplicationID && existing.Outcome == record.Outcome {
			m.feedback[i] = record
			return nil
		}
	}
	m.feedback = append(m.feedback, record)
	return nil
}

func (m *MemoryStore) ListFeedback(_ context.Context) ([]FeedbackRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FeedbackRecord(nil), m.feedback...), nil
}

func (m *MemoryStore) PopularJobs(_ context.Context, limit int) ([]JobCount, error) {
	m.mu.RLock()
	counts := make(map[int64]int)
	for _, app := range m.applications {
		counts[app.JobID]++
	}
	m.mu.RUnlock()

	out := make([]JobCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, JobCount{JobID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].JobID < out[j].JobID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
