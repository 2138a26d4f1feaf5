package vectorindex

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"
)

// MemoryBackend is an in-process Backend using exact cosine similarity.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimensions int
	points     map[string]Point
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryBackend) EnsureCollection(_ context.Context, name string, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memoryCollection{dimensions: dimensions, points: make(map[string]Point)}
	}
	return nil
}

func (m *MemoryBackend) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.collection(collection)
	if err != nil {
		return err
	}

	for _, p := range points {
		if c.dimensions > 0 && len(p.Vector) != c.dimensions {
			return fmt.Errorf("%w: %s has %d dimensions, collection has %d", ErrInvalidPoint, p.ID, len(p.Vector), c.dimensions)
		}
		c.points[p.ID] = Point{ID: p.ID, Vector: slices.Clone(p.Vector), Payload: maps.Clone(p.Payload)}
	}
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}

	hits := make([]ScoredPoint, 0)
	for _, p := range c.points {
		if !Matches(filter, p.Payload) {
			continue
		}
		score := CosineSimilarity(vector, p.Vector)
		if score < scoreThreshold {
			continue
		}
		hits = append(hits, ScoredPoint{ID: p.ID, Score: score, Payload: maps.Clone(p.Payload)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryBackend) DeleteByIDs(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(c.points, id)
	}
	return nil
}

func (m *MemoryBackend) DeleteByFilter(_ context.Context, collection string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for id, p := range c.points {
		if Matches(filter, p.Payload) {
			delete(c.points, id)
		}
	}
	return nil
}

// Count returns the number of points stored in collection.
func (m *MemoryBackend) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return 0
	}
	return len(c.points)
}

// Vector returns a copy of the stored vector for a point.
func (m *MemoryBackend) Vector(collection, id string) ([]float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, false
	}
	p, ok := c.points[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(p.Vector), true
}

func (m *MemoryBackend) collection(name string) (*memoryCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}
	return c, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
