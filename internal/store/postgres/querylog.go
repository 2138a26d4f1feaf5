package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/talentcore/internal/analytics"

	"github.com/jackc/pgx/v5"
)

func (s *Store) Append(ctx context.Context, entry analytics.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO query_logs
			(id, query_text, query_hash, tenant_id, classification, confidence, response_time_ms, sources_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.QueryText, entry.QueryHash, entry.TenantID, string(entry.Classification),
		entry.Confidence, entry.ResponseTimeMs, entry.SourcesCount, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append query log: %w", err)
	}
	return nil
}

func (s *Store) CountSince(ctx context.Context, hash string, tenantID *int64, classes []analytics.Classification, since time.Time) (int, error) {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = string(c)
	}

	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM query_logs
		WHERE query_hash = $1
		  AND tenant_id IS NOT DISTINCT FROM $2::bigint
		  AND classification = ANY($3)
		  AND created_at >= $4
	`, hash, tenantID, names, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count query logs: %w", err)
	}
	return count, nil
}

func (s *Store) ListSince(ctx context.Context, tenantID *int64, since time.Time) ([]analytics.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, query_text, query_hash, tenant_id, classification, confidence, response_time_ms, sources_count, created_at
		FROM query_logs
		WHERE tenant_id IS NOT DISTINCT FROM $1::bigint
		  AND created_at >= $2
		ORDER BY created_at
	`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.Entry, error) {
		var (
			entry analytics.Entry
			class string
		)
		err := row.Scan(&entry.ID, &entry.QueryText, &entry.QueryHash, &entry.TenantID, &class,
			&entry.Confidence, &entry.ResponseTimeMs, &entry.SourcesCount, &entry.CreatedAt)
		entry.Classification = analytics.Classification(class)
		return entry, err
	})
}
