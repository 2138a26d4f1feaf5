package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/matching"

	"go.uber.org/zap"
)

// Jobs loads job postings for feedback attributes.
type Jobs interface {
	GetJob(ctx context.Context, id int64) (*content.Job, error)
}

// Profiles resolves the candidate profile of a user.
type Profiles interface {
	GetCandidateByUser(ctx context.Context, userID int64) (*content.Candidate, error)
}

// ContentScorer scores a job for a candidate profile on a 0-100 scale.
type ContentScorer interface {
	ScoreJobForCandidate(ctx context.Context, jobID int64, candidate *content.Candidate) (matching.MatchResult, error)
}

// Recommender implements collaborative job recommendation.
type Recommender struct {
	store    Store
	jobs     Jobs
	profiles Profiles
	scorer   ContentScorer
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

// New builds a Recommender. profiles and scorer may be nil, which makes
// HybridRecommend purely collaborative.
func New(store Store, jobs Jobs, profiles Profiles, scorer ContentScorer, opts Options, log *zap.Logger) *Recommender {
	return &Recommender{
		store:    store,
		jobs:     jobs,
		profiles: profiles,
		scorer:   scorer,
		opts:     opts.withDefaults(),
		now:      time.Now,
		logger:   logger.Named(log, "recommend"),
	}
}

// Recommend returns up to limit jobs for userID. Users without applications
// get the most applied-to jobs.
func (r *Recommender) Recommend(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	applied, err := r.appliedJobs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return r.popular(ctx, limit, nil)
	}

	neighbors, err := r.neighbors(ctx, userID, applied)
	if err != nil {
		return nil, err
	}

	scores := make(map[int64]float64)
	for _, n := range neighbors {
		for jobID := range n.jobs {
			if _, ok := applied[jobID]; ok {
				continue
			}
			scores[jobID] += n.similarity
		}
	}

	recs := make([]Recommendation, 0, len(scores))
	for jobID, score := range scores {
		recs = append(recs, Recommendation{JobID: jobID, Score: score, Source: SourceCollaborative})
	}
	sortRecommendations(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}

	if len(recs) < limit {
		exclude := make(map[int64]struct{}, len(applied)+len(recs))
		for id := range applied {
			exclude[id] = struct{}{}
		}
		for _, rec := range recs {
			exclude[rec.JobID] = struct{}{}
		}

		fill, err := r.popular(ctx, limit-len(recs), exclude)
		if err != nil {
			return nil, err
		}
		for i := range fill {
			fill[i].Score = 0
		}
		recs = append(recs, fill...)
	}

	r.logger.Debug("collaborative recommendations",
		zap.Int64("user_id", userID),
		zap.Int("applied", len(applied)),
		zap.Int("neighbors", len(neighbors)),
		zap.Int("returned", len(recs)),
	)

	return recs, nil
}

// HybridRecommend blends normalized collaborative scores with the content
// match score of the user's profile, then applies the feedback boost.
func (r *Recommender) HybridRecommend(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	recs, err := r.Recommend(ctx, userID, limit*3)
	if err != nil {
		return nil, err
	}

	candidate, err := r.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if candidate != nil && r.scorer != nil {
		recs, err = r.blend(ctx, recs, candidate)
		if err != nil {
			return nil, err
		}
	}

	recs, err = r.ApplyFeedbackBoost(ctx, recs)
	if err != nil {
		return nil, err
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (r *Recommender) blend(ctx context.Context, recs []Recommendation, candidate *content.Candidate) ([]Recommendation, error) {
	maxScore := 0.0
	for _, rec := range recs {
		maxScore = math.Max(maxScore, rec.Score)
	}

	out := make([]Recommendation, 0, len(recs))
	for _, rec := range recs {
		match, err := r.scorer.ScoreJobForCandidate(ctx, rec.JobID, candidate)
		if errors.Is(err, content.ErrNotFound) {
			r.logger.Debug("skipping recommendation of missing job", zap.Int64("job_id", rec.JobID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("score job %d: %w", rec.JobID, err)
		}

		collaborative := 0.0
		if maxScore > 0 {
			collaborative = rec.Score / maxScore
		}
		rec.Score = r.opts.CollaborativeWeight*collaborative + r.opts.ContentWeight*match.Score/100
		rec.Source = SourceHybrid
		out = append(out, rec)
	}

	sortRecommendations(out)
	return out, nil
}

// tenantAttribute keys hire counts by the tenant of the hired job.
type tenantAttribute struct {
	tenantID int64
	value    string
}

// ApplyFeedbackBoost re-ranks recommendations by historical hiring outcomes.
// Jobs with a hire get HiredBoost; jobs sharing an experience level or remote
// type with enough hires of the same tenant get a smaller per-attribute boost.
// The total boost is capped and applied multiplicatively.
func (r *Recommender) ApplyFeedbackBoost(ctx context.Context, recs []Recommendation) ([]Recommendation, error) {
	if len(recs) == 0 {
		return recs, nil
	}

	records, err := r.store.ListFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}

	hired := make(map[int64]struct{})
	for _, rec := range records {
		if rec.Outcome == OutcomeHired {
			hired[rec.JobID] = struct{}{}
		}
	}

	cache := make(map[int64]*content.Job)
	lookup := func(id int64) (*content.Job, error) {
		if job, ok := cache[id]; ok {
			return job, nil
		}
		job, err := r.job(ctx, id)
		if err != nil {
			return nil, err
		}
		cache[id] = job
		return job, nil
	}

	policy := r.opts.Feedback
	levelHires := make(map[tenantAttribute]int)
	remoteHires := make(map[tenantAttribute]int)
	for _, rec := range records {
		if rec.Outcome != OutcomeHired {
			continue
		}
		job, err := lookup(rec.JobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			continue
		}
		if job.ExperienceLevel != "" {
			levelHires[tenantAttribute{job.TenantID, job.ExperienceLevel}]++
		}
		if job.RemoteType != "" {
			remoteHires[tenantAttribute{job.TenantID, job.RemoteType}]++
		}
	}

	out := make([]Recommendation, len(recs))
	for i, rec := range recs {
		boost := 0.0
		if _, ok := hired[rec.JobID]; ok {
			boost += policy.HiredBoost
		}

		job, err := lookup(rec.JobID)
		if err != nil {
			return nil, err
		}
		if job != nil {
			boost += policy.attributeBoost(levelHires[tenantAttribute{job.TenantID, job.ExperienceLevel}])
			boost += policy.attributeBoost(remoteHires[tenantAttribute{job.TenantID, job.RemoteType}])
		}

		boost = math.Min(boost, policy.MaxBoost)
		rec.Boost = boost
		rec.Score *= 1 + boost
		out[i] = rec
	}

	sortRecommendations(out)
	return out, nil
}

func (p FeedbackPolicy) attributeBoost(hires int) float64 {
	if hires < p.AttributeMinHires || hires == 0 {
		return 0
	}
	return math.Min(p.AttributeCap, p.AttributeRate*float64(hires))
}

// RecordFeedback appends the outcome of an application.
func (r *Recommender) RecordFeedback(ctx context.Context, applicationID int64, outcome string, metadata map[string]string) (FeedbackRecord, error) {
	parsed, err := ParseOutcome(outcome)
	if err != nil {
		return FeedbackRecord{}, err
	}

	app, err := r.store.GetApplication(ctx, applicationID)
	if err != nil {
		return FeedbackRecord{}, fmt.Errorf("load application %d: %w", applicationID, err)
	}

	record := FeedbackRecord{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		CandidateID:   app.CandidateID,
		Outcome:       parsed,
		OriginalScore: app.MatchScore,
		TenantID:      app.TenantID,
		Metadata:      metadata,
		RecordedAt:    r.now().UTC(),
	}
	if err := r.store.AppendFeedback(ctx, record); err != nil {
		return FeedbackRecord{}, fmt.Errorf("append feedback: %w", err)
	}

	r.logger.Info("feedback recorded",
		zap.Int64("application_id", applicationID),
		zap.String("outcome", string(parsed)),
		zap.Int64(logger.FieldTenant, app.TenantID),
	)
	return record, nil
}

type neighbor struct {
	userID     int64
	similarity float64
	jobs       map[int64]struct{}
}

func (r *Recommender) neighbors(ctx context.Context, userID int64, applied map[int64]struct{}) ([]neighbor, error) {
	seen := make(map[int64]struct{})
	for jobID := range applied {
		users, err := r.store.ListApplicantsForJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("list applicants of job %d: %w", jobID, err)
		}
		for _, u := range users {
			if u != userID {
				seen[u] = struct{}{}
			}
		}
	}

	out := make([]neighbor, 0, len(seen))
	for u := range seen {
		jobs, err := r.appliedJobs(ctx, u)
		if err != nil {
			return nil, err
		}
		if sim := Jaccard(applied, jobs); sim > 0 {
			out = append(out, neighbor{userID: u, similarity: sim, jobs: jobs})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].similarity != out[j].similarity {
			return out[i].similarity > out[j].similarity
		}
		return out[i].userID < out[j].userID
	})
	if len(out) > r.opts.Neighbors {
		out = out[:r.opts.Neighbors]
	}
	return out, nil
}

func (r *Recommender) appliedJobs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	apps, err := r.store.ListApplicationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications of user %d: %w", userID, err)
	}
	jobs := make(map[int64]struct{}, len(apps))
	for _, a := range apps {
		jobs[a.JobID] = struct{}{}
	}
	return jobs, nil
}

func (r *Recommender) popular(ctx context.Context, limit int, exclude map[int64]struct{}) ([]Recommendation, error) {
	counts, err := r.store.PopularJobs(ctx, limit+len(exclude))
	if err != nil {
		return nil, fmt.Errorf("popular jobs: %w", err)
	}

	recs := make([]Recommendation, 0, limit)
	for _, c := range counts {
		if _, skip := exclude[c.JobID]; skip {
			continue
		}
		recs = append(recs, Recommendation{JobID: c.JobID, Score: float64(c.Count), Source: SourcePopular})
		if len(recs) == limit {
			break
		}
	}
	return recs, nil
}

func (r *Recommender) profile(ctx context.Context, userID int64) (*content.Candidate, error) {
	if r.profiles == nil {
		return nil, nil
	}
	candidate, err := r.profiles.GetCandidateByUser(ctx, userID)
	if errors.Is(err, content.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile of user %d: %w", userID, err)
	}
	return candidate, nil
}

// job returns nil for jobs that no longer exist.
func (r *Recommender) job(ctx context.Context, id int64) (*content.Job, error) {
	if r.jobs == nil {
		return nil, nil
	}
	job, err := r.jobs.GetJob(ctx, id)
	if errors.Is(err, content.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}
	return job, nil
}

// Jaccard returns |a∩b| / |a∪b|, 0 for two empty sets.
func Jaccard(a, b map[int64]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].JobID < recs[j].JobID
	})
}
