// Package embedding provides the process-wide text-to-vector gateway: a bounded
// cache in front of the configured embedding provider with cost and latency telemetry.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize = 10000
	DefaultTimeout   = 30 * time.Second
	charsPerToken    = 4
)

// Options tune a Gateway.
type Options struct {
	CacheSize int
	// CostPerMillionTokens is the provider rate in USD used for cost estimates.
	CostPerMillionTokens float64
	Timeout              time.Duration
}

// Stats is a snapshot of gateway telemetry since process start.
type Stats struct {
	Calls            int64
	CacheHits        int64
	Failures         int64
	Tokens           int64
	EstimatedCostUSD float64
	TotalLatency     time.Duration
}

// Gateway memoizes embeddings by a hash of the normalized input.
type Gateway struct {
	embedder ai.Embedder
	cache    *lru.Cache[string, []float32]
	group    singleflight.Group
	opts     Options
	logger   *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewGateway wraps embedder with an LRU cache of opts.CacheSize entries.
func NewGateway(embedder ai.Embedder, opts Options, log *zap.Logger) (*Gateway, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	cache, err := lru.New[string, []float32](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Gateway{
		embedder: embedder,
		cache:    cache,
		opts:     opts,
		logger:   logger.WithCommonFields(logger.Named(log, "embedding"), "", embedder.Model()),
	}, nil
}

// Model returns the underlying embedding model.
func (g *Gateway) Model() string {
	return g.embedder.Model()
}

// Generate returns the embedding for text. Blank input yields an empty vector
// and no provider call. Provider failures are returned as errors, never as zero vectors.
func (g *Gateway) Generate(ctx context.Context, text string) ([]float32, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return []float32{}, nil
	}

	key := g.cacheKey(normalized)
	if vector, ok := g.cache.Get(key); ok {
		g.record(func(s *Stats) { s.CacheHits++ })
		return slices.Clone(vector), nil
	}

	// The shared call outlives any single caller; each caller waits on its own ctx.
	shared := context.WithoutCancel(ctx)
	results := g.group.DoChan(key, func() (any, error) {
		if vector, ok := g.cache.Get(key); ok {
			return vector, nil
		}
		return g.call(shared, normalized, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]float32)), nil
	}
}

func (g *Gateway) call(ctx context.Context, text, key string) ([]float32, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	vector, err := g.embedder.Embed(ctx, text)
	latency := time.Since(started)

	if err == nil && len(vector) == 0 {
		err = ai.NewError("embedding", "generate", ai.ErrProviderUnavailable, errors.New("provider returned an empty vector"))
	}

	if err != nil {
		g.record(func(s *Stats) {
			s.Calls++
			s.Failures++
			s.TotalLatency += latency
		})
		g.logger.Warn("embedding failed", zap.Duration("latency", latency), zap.Error(err))
		return nil, err
	}

	tokens := EstimateTokens(text)
	cost := float64(tokens) * g.opts.CostPerMillionTokens / 1_000_000

	g.record(func(s *Stats) {
		s.Calls++
		s.Tokens += int64(tokens)
		s.EstimatedCostUSD += cost
		s.TotalLatency += latency
	})

	g.logger.Debug("embedding generated",
		zap.Duration("latency", latency),
		zap.Int("tokens", tokens),
		zap.Float64("cost_usd", cost),
		zap.Int("dimensions", len(vector)),
	)

	g.cache.Add(key, vector)
	return vector, nil
}

// Stats returns a copy of the current counters.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// CacheLen reports the number of cached vectors.
func (g *Gateway) CacheLen() int {
	return g.cache.Len()
}

func (g *Gateway) record(update func(*Stats)) {
	g.mu.Lock()
	update(&g.stats)
	g.mu.Unlock()
}

func (g *Gateway) cacheKey(normalized string) string {
	sum := sha256.Sum256([]byte(g.embedder.Model() + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}

// Normalize trims text and collapses internal whitespace runs.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// EstimateTokens approximates the provider token count of text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}
