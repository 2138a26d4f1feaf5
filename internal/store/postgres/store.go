// Package postgres implements the content, application/feedback and query
// log stores on PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/spigell/talentcore/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, logger: logger.Named(log, "postgres")}, nil
}

// Close closes the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id               BIGINT PRIMARY KEY,
		tenant_id        BIGINT NOT NULL,
		title            TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		required_skills  TEXT NOT NULL DEFAULT '[]',
		preferred_skills TEXT NOT NULL DEFAULT '[]',
		experience_level TEXT NOT NULL DEFAULT '',
		city             TEXT NOT NULL DEFAULT '',
		remote_type      TEXT NOT NULL DEFAULT 'onsite',
		salary_min       DOUBLE PRECISION,
		salary_max       DOUBLE PRECISION,
		status           TEXT NOT NULL DEFAULT 'published',
		vertical         TEXT NOT NULL DEFAULT '',
		url              TEXT NOT NULL DEFAULT '',
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		id                  BIGINT PRIMARY KEY,
		user_id             BIGINT NOT NULL,
		tenant_id           BIGINT NOT NULL,
		headline            TEXT NOT NULL DEFAULT '',
		summary             TEXT NOT NULL DEFAULT '',
		skills              TEXT NOT NULL DEFAULT '[]',
		experience_years    DOUBLE PRECISION NOT NULL DEFAULT 0,
		city                TEXT NOT NULL DEFAULT '',
		willing_to_relocate BOOLEAN NOT NULL DEFAULT FALSE,
		desired_salary_min  DOUBLE PRECISION,
		desired_salary_max  DOUBLE PRECISION,
		availability_date   DATE,
		certifications      INTEGER NOT NULL DEFAULT 0,
		courses_completed   INTEGER NOT NULL DEFAULT 0,
		profile_complete    BOOLEAN NOT NULL DEFAULT FALSE,
		active              BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_tenant ON candidates (tenant_id) WHERE active`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_user ON candidates (user_id)`,
	`CREATE TABLE IF NOT EXISTS knowledge_documents (
		entity_type  TEXT NOT NULL,
		id           BIGINT NOT NULL,
		tenant_id    BIGINT NOT NULL DEFAULT 0,
		shared_type  TEXT NOT NULL DEFAULT 'tenant',
		plan_level   TEXT NOT NULL DEFAULT '',
		vertical     TEXT NOT NULL DEFAULT '',
		access_level TEXT NOT NULL DEFAULT 'public',
		title        TEXT NOT NULL DEFAULT '',
		body         TEXT NOT NULL DEFAULT '',
		url          TEXT NOT NULL DEFAULT '',
		published    BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (entity_type, id)
	)`,
	`CREATE TABLE IF NOT EXISTS applications (
		id           BIGINT PRIMARY KEY,
		job_id       BIGINT NOT NULL,
		candidate_id BIGINT NOT NULL,
		user_id      BIGINT NOT NULL,
		tenant_id    BIGINT NOT NULL,
		match_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_user ON applications (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_job ON applications (job_id)`,
	`CREATE TABLE IF NOT EXISTS application_feedback (
		application_id BIGINT NOT NULL,
		job_id         BIGINT NOT NULL,
		candidate_id   BIGINT NOT NULL,
		outcome        TEXT NOT NULL,
		original_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		tenant_id      BIGINT NOT NULL,
		metadata       JSONB NOT NULL DEFAULT '{}',
		recorded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (application_id, outcome)
	)`,
	`CREATE TABLE IF NOT EXISTS query_logs (
		id               TEXT PRIMARY KEY,
		query_text       TEXT NOT NULL,
		query_hash       TEXT NOT NULL,
		tenant_id        BIGINT,
		classification   TEXT NOT NULL,
		confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
		response_time_ms BIGINT NOT NULL DEFAULT 0,
		sources_count    INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_query_logs_gap ON query_logs (query_hash, tenant_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_query_logs_tenant ON query_logs (tenant_id, created_at)`,
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	s.logger.Debug("schema migrated", zap.Int("statements", len(schema)))
	return nil
}
