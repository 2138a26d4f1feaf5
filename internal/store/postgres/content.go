package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/talentcore/internal/content"

	"github.com/jackc/pgx/v5"
)

const (
	jobColumns = `id, tenant_id, title, description, required_skills, preferred_skills, experience_level,
		city, remote_type, salary_min, salary_max, status, vertical, url, updated_at`
	candidateColumns = `id, user_id, tenant_id, headline, summary, skills, experience_years, city,
		willing_to_relocate, desired_salary_min, desired_salary_max, availability_date,
		certifications, courses_completed, profile_complete, active`
	documentColumns = `entity_type, id, tenant_id, shared_type, plan_level, vertical, access_level,
		title, body, url, published`
)

// Rows are read as column maps and converted by the content adapters, so
// list columns may be JSON text, comma separated text or arrays.

func (s *Store) GetJob(ctx context.Context, id int64) (*content.Job, error) {
	return getOne(ctx, s, content.DecodeJob, "job", id,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
}

func (s *Store) GetCandidate(ctx context.Context, id int64) (*content.Candidate, error) {
	return getOne(ctx, s, content.DecodeCandidate, "candidate", id,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
}

func (s *Store) GetCandidateByUser(ctx context.Context, userID int64) (*content.Candidate, error) {
	return getOne(ctx, s, content.DecodeCandidate, "candidate of user", userID,
		`SELECT `+candidateColumns+` FROM candidates WHERE user_id = $1 ORDER BY active DESC, id LIMIT 1`, userID)
}

func (s *Store) GetDocument(ctx context.Context, entityType string, id int64) (*content.Document, error) {
	return getOne(ctx, s, content.DecodeDocument, entityType, id,
		`SELECT `+documentColumns+` FROM knowledge_documents WHERE entity_type = $1 AND id = $2`, entityType, id)
}

func (s *Store) ListActiveCandidates(ctx context.Context, tenantID int64) ([]content.Candidate, error) {
	return list(ctx, s, content.DecodeCandidate, "candidates",
		`SELECT `+candidateColumns+` FROM candidates WHERE tenant_id = $1 AND active ORDER BY id`, tenantID)
}

func (s *Store) ListJobs(ctx context.Context) ([]content.Job, error) {
	return list(ctx, s, content.DecodeJob, "jobs", `SELECT `+jobColumns+` FROM jobs ORDER BY id`)
}

func (s *Store) ListCandidates(ctx context.Context) ([]content.Candidate, error) {
	return list(ctx, s, content.DecodeCandidate, "candidates", `SELECT `+candidateColumns+` FROM candidates ORDER BY id`)
}

func (s *Store) ListDocuments(ctx context.Context) ([]content.Document, error) {
	return list(ctx, s, content.DecodeDocument, "documents",
		`SELECT `+documentColumns+` FROM knowledge_documents ORDER BY entity_type, id`)
}

func getOne[T any](ctx context.Context, s *Store, decode func(map[string]any) (*T, error), kind string, id int64, query string, args ...any) (*T, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %d: %w", kind, id, err)
	}

	record, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %d: %w", kind, id, err)
	}
	return decode(record)
}

func list[T any](ctx context.Context, s *Store, decode func(map[string]any) (*T, error), kind, query string, args ...any) ([]T, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}

	out := make([]T, 0, len(records))
	for _, record := range records {
		item, err := decode(record)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, nil
}
