package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJobFromLooseRecord(t *testing.T) {
	job, err := DecodeJob(map[string]any{
		"id":               "12",
		"tenant_id":        int64(3),
		"title":            "Backend engineer",
		"required_skills":  `["Go", " SQL "]`,
		"preferred_skills": "Docker, Kubernetes,",
		"experience_level": " Senior ",
		"remote_type":      "HYBRID",
		"salary_min":       "30000",
		"salary_max":       45000,
		"status":           "published",
		"updated_at":       "2026-03-01T10:00:00Z",
		"unknown_column":   true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(12), job.ID)
	assert.Equal(t, int64(3), job.TenantID)
	assert.Equal(t, []string{"Go", "SQL"}, job.RequiredSkills)
	assert.Equal(t, []string{"Docker", "Kubernetes"}, job.PreferredSkills)
	assert.Equal(t, "senior", job.ExperienceLevel)
	assert.Equal(t, RemoteHybrid, job.RemoteType)
	require.NotNil(t, job.SalaryMin)
	assert.Equal(t, 30000.0, *job.SalaryMin)
	assert.Equal(t, 45000.0, *job.SalaryMax)
	require.NotNil(t, job.UpdatedAt)
	assert.Equal(t, 2026, job.UpdatedAt.Year())
	assert.True(t, job.Published())
}

func TestDecodeCandidateHandlesNullsAndDates(t *testing.T) {
	available := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	candidate, err := DecodeCandidate(map[string]any{
		"id":                  int64(5),
		"user_id":             int64(50),
		"skills":              []any{"go", "postgres"},
		"experience_years":    int64(4),
		"willing_to_relocate": 1,
		"desired_salary_min":  nil,
		"availability_date":   available,
		"active":              true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"go", "postgres"}, candidate.Skills)
	assert.Equal(t, 4.0, candidate.ExperienceYears)
	assert.True(t, candidate.WillingToRelocate)
	assert.Nil(t, candidate.DesiredSalaryMin)
	require.NotNil(t, candidate.AvailabilityDate)
	assert.True(t, available.Equal(*candidate.AvailabilityDate))

	dated, err := DecodeCandidate(map[string]any{"availability_date": "2026-12-24"})
	require.NoError(t, err)
	assert.Equal(t, time.December, dated.AvailabilityDate.Month())
}

func TestDecodeRejectsMalformedLists(t *testing.T) {
	_, err := DecodeJob(map[string]any{"required_skills": `["go",`})
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	values, err := ParseList("null")
	require.NoError(t, err)
	assert.Empty(t, values)

	values, err = ParseList(`["a","","b"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, values)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutCandidate(Candidate{ID: 2, UserID: 20, TenantID: 1, Active: true})
	store.PutCandidate(Candidate{ID: 1, UserID: 10, TenantID: 1, Active: true})
	store.PutCandidate(Candidate{ID: 3, UserID: 30, TenantID: 1})
	store.PutCandidate(Candidate{ID: 4, UserID: 40, TenantID: 2, Active: true})
	store.PutDocument(Document{EntityType: "faq", ID: 1, Title: "Pricing"})

	active, err := store.ListActiveCandidates(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].ID)

	byUser, err := store.GetCandidateByUser(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(4), byUser.ID)

	_, err = store.GetJob(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := store.GetDocument(ctx, "faq", 1)
	require.NoError(t, err)
	assert.Equal(t, "Pricing", doc.Title)

	store.DeleteDocument("faq", 1)
	_, err = store.GetDocument(ctx, "faq", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
