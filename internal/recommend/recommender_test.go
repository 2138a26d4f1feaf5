package recommend

import (
	"context"
	"fmt"
	"testing"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/matching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedApplications() *MemoryStore {
	store := NewMemoryStore()
	id := int64(0)
	apply := func(user int64, jobs ...int64) {
		for _, job := range jobs {
			id++
			store.AddApplication(Application{ID: id, UserID: user, CandidateID: user, JobID: job, TenantID: 1, MatchScore: 70})
		}
	}

	apply(1, 10, 11)
	apply(2, 10, 11, 12)
	apply(3, 10, 13)
	apply(4, 14)

	return store
}

func jobIDs(recs []Recommendation) []int64 {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.JobID
	}
	return ids
}

func TestRecommendPopularityFallback(t *testing.T) {
	r := New(seedApplications(), nil, nil, nil, Options{}, nil)

	recs, err := r.Recommend(context.Background(), 99, 3)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 11, 12}, jobIDs(recs))
	assert.Equal(t, []float64{3, 2, 1}, []float64{recs[0].Score, recs[1].Score, recs[2].Score})
	for _, rec := range recs {
		assert.Equal(t, SourcePopular, rec.Source)
	}
}

func TestRecommendCollaborative(t *testing.T) {
	r := New(seedApplications(), nil, nil, nil, Options{}, nil)

	recs, err := r.Recommend(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, []int64{12, 13, 14}, jobIDs(recs))
	assert.InDelta(t, 2.0/3, recs[0].Score, 1e-9)
	assert.InDelta(t, 1.0/3, recs[1].Score, 1e-9)
	assert.Equal(t, SourceCollaborative, recs[0].Source)
	assert.Equal(t, SourcePopular, recs[2].Source)
	assert.Zero(t, recs[2].Score)
}

func TestRecommendKeepsTopNeighbors(t *testing.T) {
	r := New(seedApplications(), nil, nil, nil, Options{Neighbors: 1}, nil)

	recs, err := r.Recommend(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, jobIDs(recs))

	recs, err = r.Recommend(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 13, 14}, jobIDs(recs))
	assert.Equal(t, SourcePopular, recs[1].Source)

	_, err = r.Recommend(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestJaccard(t *testing.T) {
	set := func(ids ...int64) map[int64]struct{} {
		out := make(map[int64]struct{})
		for _, id := range ids {
			out[id] = struct{}{}
		}
		return out
	}

	assert.InDelta(t, 2.0/3, Jaccard(set(1, 2), set(1, 2, 3)), 1e-9)
	assert.Equal(t, 1.0, Jaccard(set(5), set(5)))
	assert.Zero(t, Jaccard(set(1), set(2)))
	assert.Zero(t, Jaccard(set(), set()))
}

func TestApplyFeedbackBoost(t *testing.T) {
	ctx := context.Background()
	jobs := content.NewMemoryStore()
	jobs.PutJob(content.Job{ID: 12, ExperienceLevel: "senior", RemoteType: "remote"})
	jobs.PutJob(content.Job{ID: 13, ExperienceLevel: "mid", RemoteType: "onsite"})

	store := NewMemoryStore()
	require.NoError(t, store.AppendFeedback(ctx, FeedbackRecord{ApplicationID: 1, JobID: 13, Outcome: OutcomeHired}))
	require.NoError(t, store.AppendFeedback(ctx, FeedbackRecord{ApplicationID: 2, JobID: 12, Outcome: OutcomeRejectedEmployer}))
	for i := int64(0); i < 5; i++ {
		jobID := 20 + i
		jobs.PutJob(content.Job{ID: jobID, ExperienceLevel: "senior", RemoteType: "remote"})
		require.NoError(t, store.AppendFeedback(ctx, FeedbackRecord{ApplicationID: 100 + i, JobID: jobID, Outcome: OutcomeHired}))
	}

	r := New(store, jobs, nil, nil, Options{}, nil)
	recs, err := r.ApplyFeedbackBoost(ctx, []Recommendation{
		{JobID: 13, Score: 0.9},
		{JobID: 12, Score: 1.0},
		{JobID: 20, Score: 1.0},
		{JobID: 99, Score: 0.5},
	})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, []int64{20, 12, 13, 99}, jobIDs(recs))
	assert.InDelta(t, 0.5, recs[0].Boost, 1e-9)
	assert.InDelta(t, 1.5, recs[0].Score, 1e-9)
	assert.InDelta(t, 0.2, recs[1].Boost, 1e-9)
	assert.InDelta(t, 1.2, recs[1].Score, 1e-9)
	assert.InDelta(t, 0.3, recs[2].Boost, 1e-9)
	assert.InDelta(t, 1.17, recs[2].Score, 1e-9)
	assert.Zero(t, recs[3].Boost)
}

func TestFeedbackBoostIsScopedToTenant(t *testing.T) {
	ctx := context.Background()
	jobs := content.NewMemoryStore()
	jobs.PutJob(content.Job{ID: 1, TenantID: 2, ExperienceLevel: "senior", RemoteType: "remote"})

	store := NewMemoryStore()
	for i := int64(0); i < 5; i++ {
		jobID := 20 + i
		jobs.PutJob(content.Job{ID: jobID, TenantID: 1, ExperienceLevel: "senior", RemoteType: "remote"})
		require.NoError(t, store.AppendFeedback(ctx, FeedbackRecord{ApplicationID: 100 + i, JobID: jobID, TenantID: 1, Outcome: OutcomeHired}))
	}

	r := New(store, jobs, nil, nil, Options{}, nil)
	recs, err := r.ApplyFeedbackBoost(ctx, []Recommendation{{JobID: 1, Score: 1.0}, {JobID: 20, Score: 1.0}})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, []int64{20, 1}, jobIDs(recs))
	assert.Zero(t, recs[1].Boost)
	assert.InDelta(t, 1.0, recs[1].Score, 1e-9)
}

func TestAttributeBoostNeedsMinimumHires(t *testing.T) {
	p := DefaultOptions().Feedback

	assert.Zero(t, p.attributeBoost(4))
	assert.InDelta(t, 0.1, p.attributeBoost(5), 1e-9)
	assert.InDelta(t, 0.1, p.attributeBoost(40), 1e-9)
}

type tableScorer map[int64]float64

func (s tableScorer) ScoreJobForCandidate(_ context.Context, jobID int64, _ *content.Candidate) (matching.MatchResult, error) {
	score, ok := s[jobID]
	if !ok {
		return matching.MatchResult{}, fmt.Errorf("job %d: %w", jobID, content.ErrNotFound)
	}
	return matching.MatchResult{SubjectID: jobID, Score: score, ScoreType: matching.ScoreRule}, nil
}

func TestHybridRecommend(t *testing.T) {
	profiles := content.NewMemoryStore()
	profiles.PutCandidate(content.Candidate{ID: 7, UserID: 1, Active: true})

	scorer := tableScorer{12: 20, 13: 100}
	r := New(seedApplications(), profiles, profiles, scorer, Options{}, nil)

	recs, err := r.HybridRecommend(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, []int64{13, 12}, jobIDs(recs))
	assert.InDelta(t, 0.4*0.5+0.6*1.0, recs[0].Score, 1e-9)
	assert.InDelta(t, 0.4*1.0+0.6*0.2, recs[1].Score, 1e-9)
	assert.Equal(t, SourceHybrid, recs[0].Source)
}

func TestHybridRecommendWithoutProfile(t *testing.T) {
	profiles := content.NewMemoryStore()
	r := New(seedApplications(), profiles, profiles, tableScorer{}, Options{}, nil)

	recs, err := r.HybridRecommend(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 13}, jobIDs(recs))
	assert.Equal(t, SourceCollaborative, recs[0].Source)
}

func TestRecordFeedback(t *testing.T) {
	ctx := context.Background()
	store := seedApplications()
	r := New(store, nil, nil, nil, Options{}, nil)

	record, err := r.RecordFeedback(ctx, 1, "Hired", map[string]string{"source": "ats"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHired, record.Outcome)
	assert.Equal(t, int64(10), record.JobID)
	assert.Equal(t, 70.0, record.OriginalScore)
	assert.False(t, record.RecordedAt.IsZero())

	_, err = r.RecordFeedback(ctx, 1, "hired", map[string]string{"source": "manual"})
	require.NoError(t, err)
	_, err = r.RecordFeedback(ctx, 1, "interviewed", nil)
	require.NoError(t, err)

	records, err := store.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "manual", records[0].Metadata["source"])

	_, err = r.RecordFeedback(ctx, 1, "ghosted", nil)
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = r.RecordFeedback(ctx, 404, "hired", nil)
	assert.ErrorIs(t, err, content.ErrNotFound)
}
