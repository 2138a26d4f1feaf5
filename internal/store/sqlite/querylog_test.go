package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/talentcore/internal/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *QueryLogStore {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "logs", "queries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCountSinceScopesTenantAndClass(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tenant := int64(7)
	now := time.Now().UTC()
	entries := []analytics.Entry{
		{ID: "1", QueryText: "q", QueryHash: "h", TenantID: &tenant, Classification: analytics.Unanswered, CreatedAt: now},
		{ID: "2", QueryText: "q", QueryHash: "h", TenantID: &tenant, Classification: analytics.AnsweredPartial, CreatedAt: now},
		{ID: "3", QueryText: "q", QueryHash: "h", TenantID: &tenant, Classification: analytics.AnsweredFull, CreatedAt: now},
		{ID: "4", QueryText: "q", QueryHash: "h", Classification: analytics.Unanswered, CreatedAt: now},
		{ID: "5", QueryText: "q", QueryHash: "h", TenantID: &tenant, Classification: analytics.Unanswered, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, s.Append(ctx, e))
	}

	since := now.Add(-24 * time.Hour)

	count, err := s.CountSince(ctx, "h", &tenant, analytics.GapClassifications, since)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.CountSince(ctx, "h", nil, analytics.GapClassifications, since)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.CountSince(ctx, "h", &tenant, nil, since)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListSinceRestoresEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tenant := int64(3)
	created := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(ctx, analytics.Entry{
		ID: "a", QueryText: "¿Horario?", QueryHash: "x", TenantID: &tenant,
		Classification: analytics.PurchaseIntent, Confidence: 0.8, ResponseTimeMs: 120, SourcesCount: 2, CreatedAt: created,
	}))
	require.NoError(t, s.Append(ctx, analytics.Entry{
		ID: "b", QueryText: "anon", QueryHash: "y", Classification: analytics.Unanswered, CreatedAt: created,
	}))

	listed, err := s.ListSince(ctx, &tenant, created.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	got := listed[0]
	assert.Equal(t, "a", got.ID)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, tenant, *got.TenantID)
	assert.Equal(t, analytics.PurchaseIntent, got.Classification)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, int64(120), got.ResponseTimeMs)

	anon, err := s.ListSince(ctx, nil, created.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Nil(t, anon[0].TenantID)
}

func TestAnalyticsOverSQLite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := analytics.New(s, analytics.NewLogNotifier(zap.NewNop()), analytics.Options{GapThreshold: 2}, zap.NewNop())
	for i := 0; i < 3; i++ {
		_, err := a.Log(ctx, analytics.Entry{QueryText: "¿Tienen parking?", Classification: analytics.Unanswered})
		require.NoError(t, err)
	}

	stats, err := a.GetStats(ctx, nil, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	require.Len(t, stats.TopUnanswered, 1)
	assert.Equal(t, 3, stats.TopUnanswered[0].Count)
}
