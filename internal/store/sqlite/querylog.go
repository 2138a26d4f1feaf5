// Package sqlite keeps the query log in a local SQLite file for single-node
// deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/talentcore/internal/analytics"
)

// QueryLogStore implements analytics.Store.
type QueryLogStore struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*QueryLogStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &QueryLogStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *QueryLogStore) Close() error {
	return s.db.Close()
}

func (s *QueryLogStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS query_logs (
			id TEXT PRIMARY KEY,
			query_text TEXT NOT NULL,
			query_hash TEXT NOT NULL,
			tenant_id INTEGER,
			classification TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			sources_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_logs_gap ON query_logs (query_hash, tenant_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_query_logs_created ON query_logs (created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func (s *QueryLogStore) Append(ctx context.Context, entry analytics.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_logs
			(id, query_text, query_hash, tenant_id, classification, confidence, response_time_ms, sources_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.QueryText, entry.QueryHash, nullableTenant(entry.TenantID), string(entry.Classification),
		entry.Confidence, entry.ResponseTimeMs, entry.SourcesCount, entry.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting query log: %w", err)
	}
	return nil
}

func (s *QueryLogStore) CountSince(ctx context.Context, hash string, tenantID *int64, classes []analytics.Classification, since time.Time) (int, error) {
	if len(classes) == 0 {
		return 0, nil
	}

	args := []any{hash, nullableTenant(tenantID), since.UnixNano()}
	for _, c := range classes {
		args = append(args, string(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(classes)), ",")

	var count int
	// IS compares NULL tenants as equal.
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM query_logs
		WHERE query_hash = ? AND tenant_id IS ? AND created_at >= ?
		  AND classification IN (`+placeholders+`)`, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting query logs: %w", err)
	}
	return count, nil
}

func (s *QueryLogStore) ListSince(ctx context.Context, tenantID *int64, since time.Time) ([]analytics.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_text, query_hash, tenant_id, classification, confidence, response_time_ms, sources_count, created_at
		FROM query_logs
		WHERE tenant_id IS ? AND created_at >= ?
		ORDER BY created_at`, nullableTenant(tenantID), since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("listing query logs: %w", err)
	}
	defer rows.Close()

	var entries []analytics.Entry
	for rows.Next() {
		var (
			entry     analytics.Entry
			tenant    sql.NullInt64
			class     string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.QueryText, &entry.QueryHash, &tenant, &class,
			&entry.Confidence, &entry.ResponseTimeMs, &entry.SourcesCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning query log: %w", err)
		}
		if tenant.Valid {
			entry.TenantID = &tenant.Int64
		}
		entry.Classification = analytics.Classification(class)
		entry.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableTenant(tenantID *int64) sql.NullInt64 {
	if tenantID == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *tenantID, Valid: true}
}
