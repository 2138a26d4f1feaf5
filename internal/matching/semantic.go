package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/vectorindex"
)

// ErrNoSemanticSignal is returned when no vector similarity can be computed.
var ErrNoSemanticSignal = errors.New("no semantic signal")

// SemanticScorer returns the 0-1 similarity between a job and a candidate.
type SemanticScorer interface {
	Similarity(ctx context.Context, job *content.Job, candidate *content.Candidate) (float64, error)
}

// Embeddings generates query vectors.
type Embeddings interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the vector index search operation.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, filter vectorindex.Filter, limit int, minScore float64) ([]vectorindex.RetrievedChunk, error)
}

// VectorScorer compares the job text embedding with the candidate's indexed vector.
type VectorScorer struct {
	embeddings Embeddings
	index      Searcher
}

// NewVectorScorer returns a VectorScorer.
func NewVectorScorer(embeddings Embeddings, index Searcher) *VectorScorer {
	return &VectorScorer{embeddings: embeddings, index: index}
}

func (v *VectorScorer) Similarity(ctx context.Context, job *content.Job, candidate *content.Candidate) (float64, error) {
	vector, err := v.embeddings.Generate(ctx, job.IndexText())
	if err != nil {
		return 0, fmt.Errorf("embed job %d: %w", job.ID, err)
	}
	if len(vector) == 0 {
		return 0, fmt.Errorf("job %d has no text: %w", job.ID, ErrNoSemanticSignal)
	}

	filter := vectorindex.AllOf(
		vectorindex.EntityFilter(vectorindex.EntityCandidate, candidate.ID),
		vectorindex.Eq(vectorindex.KeyTenantID, candidate.TenantID),
	)

	hits, err := v.index.Search(ctx, vectorindex.CollectionCandidates, vector, filter, 1, 0)
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, fmt.Errorf("candidate %d is not indexed: %w", candidate.ID, ErrNoSemanticSignal)
	}
	return hits[0].Score, nil
}
