package vectorindex

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(tenant int64, entityID int64) Payload {
	return Payload{
		KeyTenantID:    tenant,
		KeySharedType:  SharedTenant,
		KeyPlanLevel:   "starter",
		KeyVertical:    "empleo",
		KeyEntityType:  "faq",
		KeyEntityID:    entityID,
		KeyAccessLevel: AccessPrivate,
		KeyText:        fmt.Sprintf("chunk %d", entityID),
		KeySourceTitle: "FAQ",
		KeySourceURL:   "/faq",
	}
}

func newTestIndex(t *testing.T, dims int) (*Index, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	idx := New(backend, dims, 0, nil)
	require.NoError(t, idx.EnsureCollection(context.Background(), CollectionKnowledge))
	return idx, backend
}

func TestUpsertSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t, 4)
	rng := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 50; trial++ {
		vector := make([]float32, 4)
		for i := range vector {
			vector[i] = rng.Float32()*2 - 1
		}
		if CosineSimilarity(vector, vector) == 0 {
			continue
		}

		point := Point{ID: DocumentChunkID("faq", int64(trial), 0), Vector: vector, Payload: testPayload(int64(trial%3), int64(trial))}
		require.NoError(t, idx.Upsert(ctx, CollectionKnowledge, []Point{point}))

		filter := AllOf(Eq(KeyTenantID, int64(trial%3)), Eq(KeyEntityID, int64(trial)))
		hits, err := idx.Search(ctx, CollectionKnowledge, vector, filter, 3, 0.8)
		require.NoError(t, err)
		require.NotEmpty(t, hits)

		assert.Equal(t, point.ID, hits[0].PointID)
		assert.GreaterOrEqual(t, hits[0].Score, 0.8)
		assert.Equal(t, int64(trial), hits[0].EntityID)
		assert.Equal(t, "faq", hits[0].EntityType)
		assert.Equal(t, fmt.Sprintf("chunk %d", trial), hits[0].Text)
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	idx, backend := newTestIndex(t, 2)

	first := Point{ID: "faq_1_chunk_0", Vector: []float32{1, 0}, Payload: testPayload(1, 1)}
	second := Point{ID: "faq_1_chunk_0", Vector: []float32{0, 1}, Payload: testPayload(1, 1)}
	second.Payload[KeyText] = "updated"

	require.NoError(t, idx.Upsert(ctx, CollectionKnowledge, []Point{first}))
	require.NoError(t, idx.Upsert(ctx, CollectionKnowledge, []Point{second}))

	assert.Equal(t, 1, backend.Count(CollectionKnowledge))

	hits, err := idx.Search(ctx, CollectionKnowledge, []float32{0, 1}, nil, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated", hits[0].Text)
}

func TestSearchHonoursMinScoreAndOrdering(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t, 2)

	points := []Point{
		{ID: "b", Vector: []float32{1, 0}, Payload: testPayload(1, 2)},
		{ID: "a", Vector: []float32{1, 0}, Payload: testPayload(1, 1)},
		{ID: "c", Vector: []float32{0, 1}, Payload: testPayload(1, 3)},
		{ID: "d", Vector: []float32{-1, 0}, Payload: testPayload(1, 4)},
	}
	require.NoError(t, idx.Upsert(ctx, CollectionKnowledge, points))

	hits, err := idx.Search(ctx, CollectionKnowledge, []float32{1, 0}, nil, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].PointID)
	assert.Equal(t, "b", hits[1].PointID)

	none, err := idx.Search(ctx, CollectionKnowledge, []float32{1, 0}, Eq(KeyTenantID, 99), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeletes(t *testing.T) {
	ctx := context.Background()
	idx, backend := newTestIndex(t, 2)

	require.NoError(t, idx.Upsert(ctx, CollectionKnowledge, []Point{
		{ID: "faq_1_chunk_0", Vector: []float32{1, 0}, Payload: testPayload(1, 1)},
		{ID: "faq_1_chunk_1", Vector: []float32{1, 0}, Payload: testPayload(1, 1)},
		{ID: "faq_2_chunk_0", Vector: []float32{1, 0}, Payload: testPayload(1, 2)},
	}))

	require.NoError(t, idx.DeleteByIDs(ctx, CollectionKnowledge, []string{"faq_2_chunk_0", "unknown"}))
	assert.Equal(t, 2, backend.Count(CollectionKnowledge))

	require.NoError(t, idx.DeleteByFilter(ctx, CollectionKnowledge, EntityFilter("faq", 1)))
	assert.Equal(t, 0, backend.Count(CollectionKnowledge))

	assert.ErrorIs(t, idx.DeleteByFilter(ctx, CollectionKnowledge, nil), ErrInvalidFilter)
}

func TestUpsertValidation(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t, 2)

	missing := testPayload(1, 1)
	delete(missing, KeyVertical)

	tests := []Point{
		{ID: "", Vector: []float32{1, 0}, Payload: testPayload(1, 1)},
		{ID: "x", Payload: testPayload(1, 1)},
		{ID: "x", Vector: []float32{1, 0, 0}, Payload: testPayload(1, 1)},
		{ID: "x", Vector: []float32{1, 0}, Payload: missing},
	}
	for _, p := range tests {
		assert.ErrorIs(t, idx.Upsert(ctx, CollectionKnowledge, []Point{p}), ErrInvalidPoint)
	}

	assert.ErrorIs(t, idx.Upsert(ctx, "Bad-Name", nil), ErrInvalidCollection)
	_, err := idx.Search(ctx, CollectionKnowledge, []float32{1, 0}, AnyOf(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}
