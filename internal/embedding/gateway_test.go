package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/talentcore/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingEmbedder struct {
	calls  atomic.Int32
	vector []float32
	err    error
	delay  time.Duration
	texts  []string
	mu     sync.Mutex
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.vector, nil
}

func (c *countingEmbedder) Model() string { return "test-model" }

func TestGenerateEmptyInputSkipsProvider(t *testing.T) {
	embedder := &countingEmbedder{vector: []float32{1}}
	gw, err := NewGateway(embedder, Options{}, nil)
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\n\t"} {
		vector, err := gw.Generate(context.Background(), input)
		require.NoError(t, err)
		assert.NotNil(t, vector)
		assert.Empty(t, vector)
	}
	assert.Equal(t, int32(0), embedder.calls.Load())
}

func TestGenerateMemoizesNormalizedInput(t *testing.T) {
	embedder := &countingEmbedder{vector: []float32{0.1, 0.2}}
	gw, err := NewGateway(embedder, Options{CostPerMillionTokens: 0.15}, nil)
	require.NoError(t, err)

	first, err := gw.Generate(context.Background(), "Senior  Go developer")
	require.NoError(t, err)
	second, err := gw.Generate(context.Background(), "  Senior Go\ndeveloper ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), embedder.calls.Load())
	assert.Equal(t, []string{"Senior Go developer"}, embedder.texts)

	stats := gw.Stats()
	assert.Equal(t, int64(1), stats.Calls)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(5), stats.Tokens)
	assert.InDelta(t, 5*0.15/1_000_000, stats.EstimatedCostUSD, 1e-12)
	assert.Equal(t, 1, gw.CacheLen())
}

func TestGenerateReturnsIndependentCopies(t *testing.T) {
	embedder := &countingEmbedder{vector: []float32{1, 2, 3}}
	gw, err := NewGateway(embedder, Options{}, nil)
	require.NoError(t, err)

	first, err := gw.Generate(context.Background(), "text")
	require.NoError(t, err)
	first[0] = 42

	second, err := gw.Generate(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, float32(1), second[0])
}

func TestGeneratePropagatesProviderFailure(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	embedder := &countingEmbedder{err: ai.NewError("fake", "embed", ai.ErrProviderUnavailable, errors.New("down"))}
	gw, err := NewGateway(embedder, Options{}, zap.New(core))
	require.NoError(t, err)

	vector, err := gw.Generate(context.Background(), "text")
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
	assert.Nil(t, vector)
	assert.Equal(t, 0, gw.CacheLen())
	assert.Equal(t, int64(1), gw.Stats().Failures)
	assert.Equal(t, 1, observed.FilterMessage("embedding failed").Len())
}

func TestGenerateRejectsEmptyProviderVector(t *testing.T) {
	gw, err := NewGateway(&countingEmbedder{vector: []float32{}}, Options{}, nil)
	require.NoError(t, err)

	_, err = gw.Generate(context.Background(), "text")
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestGenerateCoalescesConcurrentMisses(t *testing.T) {
	embedder := &countingEmbedder{vector: []float32{1}, delay: 50 * time.Millisecond}
	gw, err := NewGateway(embedder, Options{}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gw.Generate(context.Background(), "same text")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, embedder.calls.Load(), int32(2))
}

// blockingEmbedder signals started and returns once release is closed or ctx ends.
type blockingEmbedder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return []float32{0.5}, nil
	}
}

func (b *blockingEmbedder) Model() string { return "test-model" }

func TestGenerateCancelledCallerDoesNotFailOthers(t *testing.T) {
	embedder := &blockingEmbedder{started: make(chan struct{}), release: make(chan struct{})}
	gw, err := NewGateway(embedder, Options{Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := gw.Generate(leaderCtx, "same text")
		leaderErr <- err
	}()
	<-embedder.started

	type result struct {
		vector []float32
		err    error
	}
	follower := make(chan result, 1)
	go func() {
		vector, err := gw.Generate(context.Background(), "same text")
		follower <- result{vector, err}
	}()

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(embedder.release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, []float32{0.5}, got.vector)
	assert.Equal(t, 1, gw.CacheLen())
}

func TestCacheIsBounded(t *testing.T) {
	embedder := &countingEmbedder{vector: []float32{1}}
	gw, err := NewGateway(embedder, Options{CacheSize: 2}, nil)
	require.NoError(t, err)

	for _, text := range []string{"a", "b", "c"} {
		_, err := gw.Generate(context.Background(), text)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, gw.CacheLen())

	_, err = gw.Generate(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int32(4), embedder.calls.Load())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("años"+"x"))
}
