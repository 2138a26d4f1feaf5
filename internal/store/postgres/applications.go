package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/recommend"

	"github.com/jackc/pgx/v5"
)

const applicationColumns = `id, job_id, candidate_id, user_id, tenant_id, match_score, created_at`

// AddApplication inserts or replaces an application.
func (s *Store) AddApplication(ctx context.Context, app recommend.Application) error {
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			candidate_id = EXCLUDED.candidate_id,
			user_id = EXCLUDED.user_id,
			tenant_id = EXCLUDED.tenant_id,
			match_score = EXCLUDED.match_score
	`, app.ID, app.JobID, app.CandidateID, app.UserID, app.TenantID, app.MatchScore, app.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store application %d: %w", app.ID, err)
	}
	return nil
}

func (s *Store) ListApplicationsByUser(ctx context.Context, userID int64) ([]recommend.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanApplication)
}

func (s *Store) ListApplicantsForJob(ctx context.Context, jobID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM applications WHERE job_id = $1 ORDER BY user_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applicants of job %d: %w", jobID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *Store) GetApplication(ctx context.Context, id int64) (*recommend.Application, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get application %d: %w", id, err)
	}

	app, err := pgx.CollectOneRow(rows, scanApplication)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("application %d: %w", id, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read application %d: %w", id, err)
	}
	return &app, nil
}

func (s *Store) AppendFeedback(ctx context.Context, record recommend.FeedbackRecord) error {
	metadata := record.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO application_feedback
			(application_id, job_id, candidate_id, outcome, original_score, tenant_id, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (application_id, outcome) DO UPDATE SET
			original_score = EXCLUDED.original_score,
			metadata = EXCLUDED.metadata,
			recorded_at = EXCLUDED.recorded_at
	`, record.ApplicationID, record.JobID, record.CandidateID, string(record.Outcome),
		record.OriginalScore, record.TenantID, metadata, record.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to store feedback for application %d: %w", record.ApplicationID, err)
	}
	return nil
}

func (s *Store) ListFeedback(ctx context.Context) ([]recommend.FeedbackRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT application_id, job_id, candidate_id, outcome, original_score, tenant_id, metadata, recorded_at
		FROM application_feedback
		ORDER BY recorded_at, application_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (recommend.FeedbackRecord, error) {
		var (
			record  recommend.FeedbackRecord
			outcome string
		)
		err := row.Scan(&record.ApplicationID, &record.JobID, &record.CandidateID, &outcome,
			&record.OriginalScore, &record.TenantID, &record.Metadata, &record.RecordedAt)
		record.Outcome = recommend.Outcome(outcome)
		return record, err
	})
}

func (s *Store) PopularJobs(ctx context.Context, limit int) ([]recommend.JobCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, COUNT(*)::int AS applications
		FROM applications
		GROUP BY job_id
		ORDER BY applications DESC, job_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list popular jobs: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (recommend.JobCount, error) {
		var jc recommend.JobCount
		err := row.Scan(&jc.JobID, &jc.Count)
		return jc, err
	})
}

func scanApplication(row pgx.CollectableRow) (recommend.Application, error) {
	var app recommend.Application
	err := row.Scan(&app.ID, &app.JobID, &app.CandidateID, &app.UserID, &app.TenantID, &app.MatchScore, &app.CreatedAt)
	return app, err
}
