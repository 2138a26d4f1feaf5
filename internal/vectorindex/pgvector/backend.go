// Package pgvector stores vector index collections in PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/spigell/talentcore/internal/vectorindex"

	pgv "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const upsertBatchSize = 100

var tablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

type pointRow struct {
	PointID   string         `gorm:"column:point_id;primaryKey"`
	Embedding pgv.Vector     `gorm:"column:embedding"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

type scoredRow struct {
	PointID string         `gorm:"column:point_id"`
	Payload datatypes.JSON `gorm:"column:payload"`
	Score   float64        `gorm:"column:score"`
}

// Backend implements vectorindex.Backend with one table per collection.
type Backend struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL.
func Open(dsn string, log *zap.Logger) (*Backend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open pgvector database: %w", err)
	}
	return New(db, log), nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{db: db, logger: log}
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) EnsureCollection(ctx context.Context, name string, dimensions int) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	if dimensions <= 0 {
		return errors.New("collection dimensions must be positive")
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			point_id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_payload_idx ON %s USING gin (payload)`, table, table),
	}

	db := b.db.WithContext(ctx)
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}

	b.logger.Debug("collection ensured", zap.String("table", table), zap.Int("dimensions", dimensions))
	return nil
}

func (b *Backend) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	rows := make([]pointRow, 0, len(points))
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of %s: %w", p.ID, err)
		}
		rows = append(rows, pointRow{
			PointID:   p.ID,
			Embedding: pgv.NewVector(p.Vector),
			Payload:   datatypes.JSON(payload),
			UpdatedAt: time.Now().UTC(),
		})
	}

	return b.db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "point_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "payload", "updated_at"}),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
}

func (b *Backend) Search(ctx context.Context, collection string, vector []float32, filter vectorindex.Filter, limit int, scoreThreshold float64) ([]vectorindex.ScoredPoint, error) {
	table, err := tableName(collection)
	if err != nil {
		return nil, err
	}

	where, filterArgs, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	query := pgv.NewVector(vector)
	sql := fmt.Sprintf(`SELECT point_id, payload, 1 - (embedding <=> ?) AS score
		FROM %s
		WHERE %s AND 1 - (embedding <=> ?) >= ?
		ORDER BY embedding <=> ?, point_id
		LIMIT ?`, table, where)

	args := make([]any, 0, len(filterArgs)+5)
	args = append(args, query)
	args = append(args, filterArgs...)
	args = append(args, query, scoreThreshold, query, limit)

	var rows []scoredRow
	if err := b.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}

	hits := make([]vectorindex.ScoredPoint, 0, len(rows))
	for _, row := range rows {
		payload := vectorindex.Payload{}
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &payload); err != nil {
				b.logger.Warn("skipping point with unreadable payload", zap.String("point_id", row.PointID), zap.Error(err))
				continue
			}
		}
		hits = append(hits, vectorindex.ScoredPoint{ID: row.PointID, Score: row.Score, Payload: payload})
	}

	return hits, nil
}

func (b *Backend) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE point_id IN ?`, table), ids).Error
}

func (b *Backend) DeleteByFilter(ctx context.Context, collection string, filter vectorindex.Filter) error {
	table, err := tableName(collection)
	if err != nil {
		return err
	}

	where, args, err := compileFilter(filter)
	if err != nil {
		return err
	}
	return b.db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE %s`, table, where), args...).Error
}

func tableName(collection string) (string, error) {
	table := "vectors_" + collection
	if !tablePattern.MatchString(table) {
		return "", fmt.Errorf("%w: %q", vectorindex.ErrInvalidCollection, collection)
	}
	return table, nil
}
