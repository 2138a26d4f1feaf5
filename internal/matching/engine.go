// Package matching scores candidates against job postings with weighted rules,
// optionally blended with vector similarity.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 1024
)

// ErrInvalidLimit is returned for non-positive result limits.
var ErrInvalidLimit = errors.New("limit must be positive")

// Source is the part of the content store the engine reads.
type Source interface {
	GetJob(ctx context.Context, id int64) (*content.Job, error)
	GetCandidate(ctx context.Context, id int64) (*content.Candidate, error)
	ListActiveCandidates(ctx context.Context, tenantID int64) ([]content.Candidate, error)
}

// EngineOptions tune the top-candidates cache.
type EngineOptions struct {
	CacheTTL  time.Duration
	CacheSize int
}

// Engine ranks candidates for jobs.
type Engine struct {
	*Scorer

	source   Source
	semantic SemanticScorer
	cache    *expirable.LRU[string, []MatchResult]
	logger   *zap.Logger
}

// NewEngine builds an Engine. semantic may be nil, in which case MatchCandidate is rule-only.
func NewEngine(scorer *Scorer, source Source, semantic SemanticScorer, opts EngineOptions, log *zap.Logger) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	return &Engine{
		Scorer:   scorer,
		source:   source,
		semantic: semantic,
		cache:    expirable.NewLRU[string, []MatchResult](opts.CacheSize, nil, opts.CacheTTL),
		logger:   logger.Named(log, "matching"),
	}
}

// TopCandidatesForJob returns the best active candidates of tenantID for jobID,
// highest score first and ties by candidate id ascending.
func (e *Engine) TopCandidatesForJob(ctx context.Context, jobID int64, limit int, tenantID int64) ([]MatchResult, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	key := cacheKey(jobID, limit, tenantID)
	if cached, ok := e.cache.Get(key); ok {
		return cloneResults(cached), nil
	}

	job, err := e.tenantJob(ctx, jobID, tenantID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.source.ListActiveCandidates(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list candidates of tenant %d: %w", tenantID, err)
	}

	jobFeatures := JobFeaturesOf(job)
	results := make([]MatchResult, 0, len(candidates))
	for i := range candidates {
		results = append(results, e.ScoreRule(jobFeatures, CandidateFeaturesOf(&candidates[i])))
	}

	SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}

	e.cache.Add(key, cloneResults(results))
	e.logger.Debug("ranked candidates",
		zap.Int64("job_id", jobID),
		zap.Int64(logger.FieldTenant, tenantID),
		zap.Int("scored", len(candidates)),
		zap.Int("returned", len(results)),
	)

	return results, nil
}

// MatchCandidate scores one candidate for a job, blending in semantic similarity
// when it is available and falling back to the rule score otherwise.
func (e *Engine) MatchCandidate(ctx context.Context, jobID, candidateID, tenantID int64) (MatchResult, error) {
	job, err := e.tenantJob(ctx, jobID, tenantID)
	if err != nil {
		return MatchResult{}, err
	}

	candidate, err := e.source.GetCandidate(ctx, candidateID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("load candidate %d: %w", candidateID, err)
	}
	if candidate.TenantID != tenantID {
		return MatchResult{}, fmt.Errorf("candidate %d: %w", candidateID, content.ErrNotFound)
	}

	rule := e.ScoreRule(JobFeaturesOf(job), CandidateFeaturesOf(candidate))
	if e.semantic == nil {
		return rule, nil
	}

	similarity, err := e.semantic.Similarity(ctx, job, candidate)
	if err != nil {
		e.logger.Warn("semantic score unavailable, using rule score",
			zap.Int64("job_id", jobID),
			zap.Int64("candidate_id", candidateID),
			zap.Error(err),
		)
		return rule, nil
	}

	hybrid := e.ScoreHybrid(rule.Score, similarity*100, BoostOf(candidate))
	hybrid.SubjectID = candidate.ID
	for factor, value := range rule.Breakdown {
		hybrid.Breakdown[factor] = value
	}
	return hybrid, nil
}

// ScoreJobForCandidate returns the rule score of a job for a candidate profile.
func (e *Engine) ScoreJobForCandidate(ctx context.Context, jobID int64, candidate *content.Candidate) (MatchResult, error) {
	job, err := e.source.GetJob(ctx, jobID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("load job %d: %w", jobID, err)
	}

	result := e.ScoreRule(JobFeaturesOf(job), CandidateFeaturesOf(candidate))
	result.SubjectID = job.ID
	return result, nil
}

// InvalidateJob drops cached rankings of jobID.
func (e *Engine) InvalidateJob(jobID int64) {
	prefix := strconv.FormatInt(jobID, 10) + ":"
	for _, key := range e.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			e.cache.Remove(key)
		}
	}
}

// InvalidateAll drops every cached ranking, e.g. after a candidate changes.
func (e *Engine) InvalidateAll() {
	e.cache.Purge()
}

func (e *Engine) tenantJob(ctx context.Context, jobID, tenantID int64) (*content.Job, error) {
	job, err := e.source.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", jobID, err)
	}
	if job.TenantID != tenantID {
		return nil, fmt.Errorf("job %d: %w", jobID, content.ErrNotFound)
	}
	return job, nil
}

// SortResults orders by score descending, then subject id ascending.
func SortResults(results []MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SubjectID < results[j].SubjectID
	})
}

func cacheKey(jobID int64, limit int, tenantID int64) string {
	return fmt.Sprintf("%d:%d:%d", jobID, limit, tenantID)
}

func cloneResults(results []MatchResult) []MatchResult {
	out := make([]MatchResult, len(results))
	for i, r := range results {
		out[i] = r.clone()
	}
	return out
}
