// Package vectorindex is the tenant-aware wrapper over the vector index service.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/spigell/talentcore/internal/logger"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPoint is returned for points with missing ids, vectors or payload keys.
	ErrInvalidPoint = errors.New("invalid point")
	// ErrInvalidCollection is returned for collection names outside [a-z0-9_].
	ErrInvalidCollection = errors.New("invalid collection name")
)

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

const defaultTimeout = 10 * time.Second

// Point is a vector plus its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredPoint is a backend search hit.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload Payload
}

// RetrievedChunk is a search hit shaped for prompt building and scoring.
type RetrievedChunk struct {
	PointID     string  `json:"point_id"`
	Text        string  `json:"text"`
	SourceURL   string  `json:"source_url"`
	SourceTitle string  `json:"source_title"`
	Score       float64 `json:"score"`
	EntityType  string  `json:"entity_type"`
	EntityID    int64   `json:"entity_id"`
	Payload     Payload `json:"-"`
}

// Backend is the vector index service contract.
type Backend interface {
	EnsureCollection(ctx context.Context, name string, dimensions int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, scoreThreshold float64) ([]ScoredPoint, error)
	DeleteByIDs(ctx context.Context, collection string, ids []string) error
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
}

// Index validates requests before they reach the backend and bounds every call with a timeout.
type Index struct {
	backend    Backend
	dimensions int
	timeout    time.Duration
	logger     *zap.Logger
}

// New wraps backend. dimensions is the vector length used for new collections.
func New(backend Backend, dimensions int, timeout time.Duration, log *zap.Logger) *Index {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Index{
		backend:    backend,
		dimensions: dimensions,
		timeout:    timeout,
		logger:     logger.Named(log, "vectorindex"),
	}
}

// Dimensions returns the configured vector length.
func (i *Index) Dimensions() int {
	return i.dimensions
}

// EnsureCollection creates the collection when it does not exist yet.
func (i *Index) EnsureCollection(ctx context.Context, name string) error {
	if err := validateCollection(name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.backend.EnsureCollection(ctx, name, i.dimensions); err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return nil
}

// Upsert writes points, replacing existing ones with the same id.
func (i *Index) Upsert(ctx context.Context, collection string, points []Point) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}

	for _, p := range points {
		if err := i.validatePoint(p); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.backend.Upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}

	i.logger.Debug("points upserted", zap.String(logger.FieldCollection, collection), zap.Int("count", len(points)))
	return nil
}

// Search returns hits with score >= minScore, best first. No hits is not an error.
func (i *Index) Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int, minScore float64) ([]RetrievedChunk, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if err := Validate(filter); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidPoint)
	}
	if limit <= 0 {
		return []RetrievedChunk{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	started := time.Now()
	hits, err := i.backend.Search(ctx, collection, vector, filter, limit, minScore)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		score := clampScore(hit.Score)
		if score < minScore {
			continue
		}
		entityID, _ := hit.Payload.Int64(KeyEntityID)
		chunks = append(chunks, RetrievedChunk{
			PointID:     hit.ID,
			Text:        hit.Payload.String(KeyText),
			SourceURL:   hit.Payload.String(KeySourceURL),
			SourceTitle: hit.Payload.String(KeySourceTitle),
			Score:       score,
			EntityType:  hit.Payload.String(KeyEntityType),
			EntityID:    entityID,
			Payload:     hit.Payload,
		})
		if len(chunks) == limit {
			break
		}
	}

	i.logger.Debug("search completed",
		zap.String(logger.FieldCollection, collection),
		zap.Int("hits", len(chunks)),
		zap.Duration("latency", time.Since(started)),
	)

	return chunks, nil
}

// DeleteByIDs removes points by id. Unknown ids are ignored.
func (i *Index) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.backend.DeleteByIDs(ctx, collection, ids); err != nil {
		return fmt.Errorf("delete from %s: %w", collection, err)
	}
	return nil
}

// DeleteByFilter removes every point matching filter. A nil filter is rejected.
func (i *Index) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if filter == nil {
		return fmt.Errorf("%w: delete requires a filter", ErrInvalidFilter)
	}
	if err := Validate(filter); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	if err := i.backend.DeleteByFilter(ctx, collection, filter); err != nil {
		return fmt.Errorf("delete by filter from %s: %w", collection, err)
	}
	return nil
}

func (i *Index) validatePoint(p Point) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPoint)
	}
	if len(p.Vector) == 0 {
		return fmt.Errorf("%w: %s has no vector", ErrInvalidPoint, p.ID)
	}
	if i.dimensions > 0 && len(p.Vector) != i.dimensions {
		return fmt.Errorf("%w: %s has %d dimensions, want %d", ErrInvalidPoint, p.ID, len(p.Vector), i.dimensions)
	}
	for _, key := range RequiredKeys {
		if _, ok := p.Payload[key]; !ok {
			return fmt.Errorf("%w: %s is missing payload key %q", ErrInvalidPoint, p.ID, key)
		}
	}
	return nil
}

func validateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
