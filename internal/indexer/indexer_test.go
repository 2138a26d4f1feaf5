package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEmbeddings struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (f *fakeEmbeddings) Generate(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("provider unavailable")
	}
	return []float32{float32(len(text)%7) + 1, 1}, nil
}

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(out, " ")
}

func newTestIndexer(t *testing.T, embeddings Embeddings, opts Options, log *zap.Logger) (*Indexer, *vectorindex.MemoryBackend) {
	t.Helper()
	backend := vectorindex.NewMemoryBackend()
	ix, err := New(embeddings, vectorindex.New(backend, 2, 0, nil), opts, log)
	require.NoError(t, err)
	return ix, backend
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("   ", 200, 40))
	assert.Equal(t, []string{"a b c"}, Chunk(" a  b\nc ", 200, 40))

	chunks := Chunk(words(450), 200, 40)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[1], "w160 "))
	assert.True(t, strings.HasPrefix(chunks[2], "w320 "))
	assert.True(t, strings.HasSuffix(chunks[2], " w449"))
	assert.Len(t, strings.Fields(chunks[0]), 200)
}

func TestOptionsValidation(t *testing.T) {
	for _, opts := range []Options{
		{Workers: 17},
		{Workers: -1},
		{ChunkWords: 10, ChunkOverlap: 10},
		{ChunkOverlap: -5},
	} {
		_, err := New(&fakeEmbeddings{}, nil, opts, nil)
		assert.ErrorIs(t, err, ErrInvalidOptions, "%+v", opts)
	}

	ix, err := New(&fakeEmbeddings{}, nil, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Options{Workers: 8, ChunkWords: 200, ChunkOverlap: 40}, ix.opts)
}

func TestIndexJobs(t *testing.T) {
	ctx := context.Background()
	embeddings := &fakeEmbeddings{}
	ix, backend := newTestIndexer(t, embeddings, Options{Workers: 2}, nil)

	jobs := []content.Job{
		{ID: 1, TenantID: 10, Title: "Go developer", Description: words(450), Status: content.JobPublished},
		{ID: 2, TenantID: 10, Title: "Draft", Status: "draft"},
		{ID: 3, TenantID: 11, Title: "Data engineer", Description: "SQL and Python"},
	}

	report, err := ix.IndexJobs(ctx, jobs)
	require.NoError(t, err)
	assert.Equal(t, Report{Collection: vectorindex.CollectionJobs, Total: 3, Indexed: 2, Skipped: 1, Duration: report.Duration}, report)
	assert.Equal(t, 4, backend.Count(vectorindex.CollectionJobs))
	assert.LessOrEqual(t, embeddings.peak.Load(), int32(2))

	_, ok := backend.Vector(vectorindex.CollectionJobs, vectorindex.JobChunkID(1, 2))
	assert.True(t, ok)

	jobs[0].Description = "short now"
	jobs[2].Status = "closed"
	report, err = ix.IndexJobs(ctx, jobs)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, backend.Count(vectorindex.CollectionJobs))

	_, ok = backend.Vector(vectorindex.CollectionJobs, vectorindex.JobChunkID(1, 2))
	assert.False(t, ok)
}

func TestIndexCandidates(t *testing.T) {
	ix, backend := newTestIndexer(t, &fakeEmbeddings{}, Options{}, nil)

	report, err := ix.IndexCandidates(context.Background(), []content.Candidate{
		{ID: 1, TenantID: 10, Active: true, Headline: "Backend engineer", Skills: []string{"go"}},
		{ID: 2, TenantID: 10, Active: false, Headline: "Inactive"},
		{ID: 3, TenantID: 10, Active: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 2, report.Skipped)
	_, ok := backend.Vector(vectorindex.CollectionCandidates, vectorindex.CandidatePointID(1))
	assert.True(t, ok)
}

func TestIndexDocumentsCountsFailures(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	ix, backend := newTestIndexer(t, &fakeEmbeddings{failOn: "broken"}, Options{Workers: 4}, zap.New(core))

	docs := []content.Document{
		{EntityType: "faq", ID: 1, SharedType: vectorindex.SharedPlatform, Title: "Precios", Body: "El plan Pro cuesta 49 €.", Published: true},
		{EntityType: "faq", ID: 2, Title: "Roto", Body: "broken text", Published: true},
		{EntityType: "course", ID: 1, TenantID: 5, Title: "Curso", Body: "Go avanzado", Published: true, AccessLevel: vectorindex.AccessPrivate},
		{EntityType: "faq", ID: 3, Title: "Oculto", Body: "draft", Published: false},
	}

	report, err := ix.IndexDocuments(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"faq/2"}, report.FailedIDs)
	assert.Equal(t, 2, backend.Count(vectorindex.CollectionKnowledge))
	assert.Equal(t, 1, observed.FilterMessage("failed to index item").Len())

	idx := vectorindex.New(backend, 2, 0, nil)
	hits, err := idx.Search(context.Background(), vectorindex.CollectionKnowledge, []float32{1, 1},
		vectorindex.EntityFilter("course", 1), 5, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Curso Go avanzado", hits[0].Text)
	assert.Equal(t, vectorindex.AccessPrivate, hits[0].Payload.String(vectorindex.KeyAccessLevel))
	assert.Equal(t, vectorindex.SharedTenant, hits[0].Payload.String(vectorindex.KeySharedType))
}

func TestIndexStopsOnCancelledContext(t *testing.T) {
	ix, _ := newTestIndexer(t, &fakeEmbeddings{}, Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := ix.IndexJobs(ctx, []content.Job{{ID: 1, Title: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Indexed)
}
