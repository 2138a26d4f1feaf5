// Package indexer (re)embeds jobs, candidates and knowledge documents into the
// vector index with bounded parallelism.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/vectorindex"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 8
	MaxWorkers          = 16
	DefaultChunkWords   = 200
	DefaultChunkOverlap = 40
)

var ErrInvalidOptions = errors.New("invalid indexer options")

// Embeddings generates vectors for chunk texts.
type Embeddings interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Index is the subset of the vector index the indexer writes to.
type Index interface {
	EnsureCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []vectorindex.Point) error
	DeleteByFilter(ctx context.Context, collection string, filter vectorindex.Filter) error
}

// Options configure an Indexer.
type Options struct {
	Workers      int `mapstructure:"workers"`
	ChunkWords   int `mapstructure:"chunk-words"`
	ChunkOverlap int `mapstructure:"chunk-overlap"`
}

func (o Options) withDefaults() (Options, error) {
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.ChunkWords == 0 {
		o.ChunkWords = DefaultChunkWords
	}
	if o.ChunkOverlap == 0 {
		o.ChunkOverlap = DefaultChunkOverlap
	}

	switch {
	case o.Workers < 1 || o.Workers > MaxWorkers:
		return o, fmt.Errorf("%w: workers must be between 1 and %d, got %d", ErrInvalidOptions, MaxWorkers, o.Workers)
	case o.ChunkWords < 1:
		return o, fmt.Errorf("%w: chunk_words must be positive", ErrInvalidOptions)
	case o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkWords:
		return o, fmt.Errorf("%w: chunk_overlap must be in [0, chunk_words)", ErrInvalidOptions)
	}
	return o, nil
}

// Report summarizes a batch.
type Report struct {
	Collection string        `json:"collection"`
	Total      int           `json:"total"`
	Indexed    int           `json:"indexed"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	FailedIDs  []string      `json:"failed_ids,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Indexer writes entities to the vector index.
type Indexer struct {
	embeddings Embeddings
	index      Index
	opts       Options
	logger     *zap.Logger
}

// New validates opts and builds an Indexer.
func New(embeddings Embeddings, index Index, opts Options, log *zap.Logger) (*Indexer, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Indexer{
		embeddings: embeddings,
		index:      index,
		opts:       opts,
		logger:     logger.Named(log, "indexer"),
	}, nil
}

type outcome int

const (
	indexed outcome = iota
	skipped
	failed
)

// item is one entity to (re)index. Items with skip set only have their points removed.
type item struct {
	id      string
	entity  vectorindex.Filter
	skip    bool
	chunks  []string
	payload vectorindex.Payload
	pointID func(chunk int) string
}

// IndexJobs indexes published jobs chunk by chunk and removes the rest.
func (ix *Indexer) IndexJobs(ctx context.Context, jobs []content.Job) (Report, error) {
	items := make([]item, 0, len(jobs))
	for _, job := range jobs {
		id := job.ID
		items = append(items, item{
			id:     strconv.FormatInt(id, 10),
			entity: vectorindex.EntityFilter(vectorindex.EntityJob, id),
			skip:   !job.Published(),
			chunks: Chunk(job.IndexText(), ix.opts.ChunkWords, ix.opts.ChunkOverlap),
			payload: vectorindex.Payload{
				vectorindex.KeyTenantID:    job.TenantID,
				vectorindex.KeySharedType:  vectorindex.SharedTenant,
				vectorindex.KeyPlanLevel:   "",
				vectorindex.KeyVertical:    job.Vertical,
				vectorindex.KeyEntityType:  vectorindex.EntityJob,
				vectorindex.KeyEntityID:    id,
				vectorindex.KeyAccessLevel: vectorindex.AccessPublic,
				vectorindex.KeySourceTitle: job.Title,
				vectorindex.KeySourceURL:   job.URL,
			},
			pointID: func(chunk int) string { return vectorindex.JobChunkID(id, chunk) },
		})
	}
	return ix.run(ctx, vectorindex.CollectionJobs, items)
}

// IndexCandidates stores one vector per active candidate and removes inactive ones.
func (ix *Indexer) IndexCandidates(ctx context.Context, candidates []content.Candidate) (Report, error) {
	items := make([]item, 0, len(candidates))
	for _, c := range candidates {
		id := c.ID
		var chunks []string
		if text := strings.TrimSpace(c.IndexText()); text != "" {
			chunks = []string{text}
		}
		items = append(items, item{
			id:     strconv.FormatInt(id, 10),
			entity: vectorindex.EntityFilter(vectorindex.EntityCandidate, id),
			skip:   !c.Active,
			chunks: chunks,
			payload: vectorindex.Payload{
				vectorindex.KeyTenantID:    c.TenantID,
				vectorindex.KeySharedType:  vectorindex.SharedTenant,
				vectorindex.KeyPlanLevel:   "",
				vectorindex.KeyVertical:    "",
				vectorindex.KeyEntityType:  vectorindex.EntityCandidate,
				vectorindex.KeyEntityID:    id,
				vectorindex.KeyAccessLevel: vectorindex.AccessPrivate,
				vectorindex.KeySourceTitle: c.Headline,
			},
			pointID: func(int) string { return vectorindex.CandidatePointID(id) },
		})
	}
	return ix.run(ctx, vectorindex.CollectionCandidates, items)
}

// IndexDocuments indexes published knowledge documents and removes unpublished ones.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []content.Document) (Report, error) {
	items := make([]item, 0, len(docs))
	for _, doc := range docs {
		id, entityType := doc.ID, doc.EntityType
		shared := doc.SharedType
		if shared == "" {
			shared = vectorindex.SharedTenant
		}
		access := doc.AccessLevel
		if access == "" {
			access = vectorindex.AccessPublic
		}

		items = append(items, item{
			id:     entityType + "/" + strconv.FormatInt(id, 10),
			entity: vectorindex.EntityFilter(entityType, id),
			skip:   !doc.Published,
			chunks: Chunk(strings.TrimSpace(doc.Title+"\n"+doc.Body), ix.opts.ChunkWords, ix.opts.ChunkOverlap),
			payload: vectorindex.Payload{
				vectorindex.KeyTenantID:    doc.TenantID,
				vectorindex.KeySharedType:  shared,
				vectorindex.KeyPlanLevel:   doc.PlanLevel,
				vectorindex.KeyVertical:    doc.Vertical,
				vectorindex.KeyEntityType:  entityType,
				vectorindex.KeyEntityID:    id,
				vectorindex.KeyAccessLevel: access,
				vectorindex.KeySourceTitle: doc.Title,
				vectorindex.KeySourceURL:   doc.URL,
			},
			pointID: func(chunk int) string { return vectorindex.DocumentChunkID(entityType, id, chunk) },
		})
	}
	return ix.run(ctx, vectorindex.CollectionKnowledge, items)
}

func (ix *Indexer) run(ctx context.Context, collection string, items []item) (Report, error) {
	started := time.Now()
	report := Report{Collection: collection, Total: len(items)}

	if err := ix.index.EnsureCollection(ctx, collection); err != nil {
		return report, fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(ix.opts.Workers)

	for _, it := range items {
		g.Go(func() error {
			result, err := ix.indexOne(ctx, collection, it)

			mu.Lock()
			defer mu.Unlock()
			switch result {
			case indexed:
				report.Indexed++
			case skipped:
				report.Skipped++
			case failed:
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, it.id)
				ix.logger.Warn("failed to index item",
					zap.String(logger.FieldCollection, collection),
					zap.String("item", it.id),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(started)
	ix.logger.Info("collection indexed",
		zap.String(logger.FieldCollection, collection),
		zap.Int("total", report.Total),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)

	return report, ctx.Err()
}

func (ix *Indexer) indexOne(ctx context.Context, collection string, it item) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return failed, err
	}

	if it.skip || len(it.chunks) == 0 {
		if err := ix.index.DeleteByFilter(ctx, collection, it.entity); err != nil {
			return failed, fmt.Errorf("remove points: %w", err)
		}
		return skipped, nil
	}

	points := make([]vectorindex.Point, 0, len(it.chunks))
	for i, text := range it.chunks {
		vector, err := ix.embeddings.Generate(ctx, text)
		if err != nil {
			return failed, fmt.Errorf("embed chunk %d: %w", i, err)
		}

		payload := make(vectorindex.Payload, len(it.payload)+2)
		for k, v := range it.payload {
			payload[k] = v
		}
		payload[vectorindex.KeyText] = text
		payload[vectorindex.KeyChunkIndex] = i

		points = append(points, vectorindex.Point{ID: it.pointID(i), Vector: vector, Payload: payload})
	}

	if err := ix.index.DeleteByFilter(ctx, collection, it.entity); err != nil {
		return failed, fmt.Errorf("remove stale points: %w", err)
	}
	if err := ix.index.Upsert(ctx, collection, points); err != nil {
		return failed, fmt.Errorf("upsert: %w", err)
	}
	return indexed, nil
}

// Chunk splits text into windows of size words overlapping by overlap words.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 || len(words) <= size {
		return []string{strings.Join(words, " ")}
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	var chunks []string
	for start := 0; ; start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
