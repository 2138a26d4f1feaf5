// Package rag answers natural-language questions from the tenant-visible
// knowledge base and refuses to return answers the context does not support.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/analytics"
	"github.com/spigell/talentcore/internal/content"
	"github.com/spigell/talentcore/internal/grounding"
	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/utils"
	"github.com/spigell/talentcore/internal/vectorindex"
	"github.com/spigell/talentcore/internal/visibility"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("query is empty")

// Embeddings turns the question into a vector.
type Embeddings interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Retriever searches the vector index.
type Retriever interface {
	Search(ctx context.Context, collection string, vector []float32, filter vectorindex.Filter, limit int, minScore float64) ([]vectorindex.RetrievedChunk, error)
}

// Records re-reads the live source of a hit.
type Records interface {
	GetJob(ctx context.Context, id int64) (*content.Job, error)
	GetDocument(ctx context.Context, entityType string, id int64) (*content.Document, error)
}

// Validator checks an answer against its context.
type Validator interface {
	Validate(response string, context []string) grounding.Result
}

// QueryLogger stores query log entries.
type QueryLogger interface {
	Log(ctx context.Context, entry analytics.Entry) (analytics.Entry, error)
}

// Request is one question from a caller.
type Request struct {
	Query     string `json:"query" validate:"required"`
	TenantID  *int64 `json:"tenant_id,omitempty"`
	Vertical  string `json:"vertical,omitempty"`
	PlanLevel string `json:"plan_level,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Source is a cited knowledge item.
type Source struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Score      float64 `json:"score"`
	EntityType string  `json:"entity_type"`
	EntityID   int64   `json:"entity_id"`
}

// Response is the outcome of a query. It is returned for every accepted request,
// including failed ones, which carry the ERROR classification.
type Response struct {
	RequestID      string                   `json:"request_id"`
	Answer         string                   `json:"response"`
	Sources        []Source                 `json:"sources"`
	Confidence     float64                  `json:"confidence"`
	Classification analytics.Classification `json:"classification"`
	Grounding      *grounding.Result        `json:"grounding,omitempty"`
	ResponseTimeMs int64                    `json:"response_time_ms"`
}

// Options tune retrieval, generation and classification.
type Options struct {
	Collection           string        `mapstructure:"collection"`
	Limit                int           `mapstructure:"limit"`
	MinScore             float64       `mapstructure:"min-score"`
	PartialThreshold     float64       `mapstructure:"partial-threshold"`
	Temperature          float32       `mapstructure:"temperature"`
	MaxTokens            int32         `mapstructure:"max-tokens"`
	RegenerateOnInvalid  bool          `mapstructure:"regenerate-on-invalid"`
	NoInformationMessage string        `mapstructure:"no-information-message"`
	FallbackMessage      string        `mapstructure:"fallback-message"`
	PurchaseKeywords     []string      `mapstructure:"purchase-keywords"`
	LogTimeout           time.Duration `mapstructure:"log-timeout"`
}

var defaultPurchaseKeywords = []string{
	"comprar", "compra", "contratar", "contratacion", "precio", "precios", "presupuesto", "cotizacion",
	"suscribirme", "suscripcion", "pagar", "pago", "tarifa", "tarifas", "factura", "descuento", "demo",
	"buy", "purchase", "price", "pricing", "quote", "subscribe", "subscription", "pay", "payment",
	"invoice", "discount", "upgrade", "trial",
}

// DefaultOptions returns the stock pipeline settings.
func DefaultOptions() Options {
	return Options{
		Collection:           vectorindex.CollectionKnowledge,
		Limit:                5,
		MinScore:             0.5,
		PartialThreshold:     0.75,
		Temperature:          0.3,
		MaxTokens:            1024,
		NoInformationMessage: DefaultNoInformationMessage,
		FallbackMessage:      DefaultFallbackMessage,
		PurchaseKeywords:     defaultPurchaseKeywords,
		LogTimeout:           5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Collection == "" {
		o.Collection = d.Collection
	}
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	if o.MinScore <= 0 {
		o.MinScore = d.MinScore
	}
	if o.PartialThreshold <= 0 {
		o.PartialThreshold = d.PartialThreshold
	}
	if o.Temperature <= 0 {
		o.Temperature = d.Temperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.NoInformationMessage == "" {
		o.NoInformationMessage = d.NoInformationMessage
	}
	if o.FallbackMessage == "" {
		o.FallbackMessage = d.FallbackMessage
	}
	if len(o.PurchaseKeywords) == 0 {
		o.PurchaseKeywords = d.PurchaseKeywords
	}
	if o.LogTimeout <= 0 {
		o.LogTimeout = d.LogTimeout
	}
	return o
}

// Orchestrator runs the query pipeline.
type Orchestrator struct {
	embeddings Embeddings
	index      Retriever
	records    Records
	completer  ai.Completer
	validator  Validator
	analytics  QueryLogger
	opts       Options
	purchase   map[string]struct{}
	now        func() time.Time
	logger     *zap.Logger

	wg sync.WaitGroup
}

// Deps are the collaborators of an Orchestrator. Records and Analytics are optional.
type Deps struct {
	Embeddings Embeddings
	Index      Retriever
	Records    Records
	Completer  ai.Completer
	Validator  Validator
	Analytics  QueryLogger
}

// New builds an Orchestrator.
func New(deps Deps, opts Options, log *zap.Logger) (*Orchestrator, error) {
	if deps.Embeddings == nil || deps.Index == nil || deps.Completer == nil || deps.Validator == nil {
		return nil, errors.New("rag orchestrator requires embeddings, index, completer and validator")
	}

	opts = opts.withDefaults()
	purchase := make(map[string]struct{}, len(opts.PurchaseKeywords))
	for _, kw := range opts.PurchaseKeywords {
		for _, tok := range analytics.Tokens(kw) {
			purchase[tok] = struct{}{}
		}
	}

	return &Orchestrator{
		embeddings: deps.Embeddings,
		index:      deps.Index,
		records:    deps.Records,
		completer:  deps.Completer,
		validator:  deps.Validator,
		analytics:  deps.Analytics,
		opts:       opts,
		purchase:   purchase,
		now:        time.Now,
		logger:     logger.Named(log, "rag"),
	}, nil
}

// Query answers req. Only invalid input is returned as an error; every other
// failure becomes a response with the ERROR classification.
func (o *Orchestrator) Query(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vis, err := visibility.NewContext(req.TenantID, req.Vertical, req.PlanLevel)
	if err != nil {
		return nil, err
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := logger.WithTenant(o.logger, req.TenantID, req.RequestID)
	log.Info("query received", zap.String("query", utils.TruncateForLog(query, 200)))

	start := o.now()
	resp := o.run(ctx, query, vis, log)
	resp.RequestID = req.RequestID
	resp.ResponseTimeMs = o.now().Sub(start).Milliseconds()

	log.Info("query answered",
		zap.String("classification", string(resp.Classification)),
		zap.Float64("confidence", resp.Confidence),
		zap.Int("sources", len(resp.Sources)),
		zap.Int64("response_time_ms", resp.ResponseTimeMs),
	)

	o.logAsync(analytics.Entry{
		ID:             req.RequestID,
		QueryText:      query,
		TenantID:       req.TenantID,
		Classification: resp.Classification,
		Confidence:     resp.Confidence,
		ResponseTimeMs: resp.ResponseTimeMs,
		SourcesCount:   len(resp.Sources),
		CreatedAt:      start.UTC(),
	}, log)

	return resp, nil
}

// Wait blocks until pending analytics writes finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, query string, vis visibility.Context, log *zap.Logger) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("query pipeline panicked", zap.Any("panic", r))
			resp = o.errorResponse()
		}
	}()

	vector, err := o.embeddings.Generate(ctx, query)
	if err == nil && len(vector) == 0 {
		err = errors.New("empty query embedding")
	}
	if err != nil {
		log.Error("failed to embed query", zap.Error(err), zap.Bool("provider_unavailable", ai.IsUnavailable(err)))
		return o.errorResponse()
	}

	hits, err := o.index.Search(ctx, o.opts.Collection, vector, visibility.Build(vis), o.opts.Limit, o.opts.MinScore)
	if err != nil {
		log.Error("failed to search knowledge base", zap.Error(err))
		return o.errorResponse()
	}

	chunks := o.fresh(ctx, hits, log)
	log.Debug("context retrieved", zap.Int("hits", len(hits)), zap.Int("fresh", len(chunks)))

	if len(chunks) == 0 {
		result := o.validator.Validate(o.opts.NoInformationMessage, nil)
		return &Response{
			Answer:         o.opts.NoInformationMessage,
			Sources:        []Source{},
			Classification: analytics.Unanswered,
			Grounding:      &result,
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	answer, result, err := o.generate(ctx, query, chunks, texts, false, log)
	if err == nil && !result.IsValid && o.opts.RegenerateOnInvalid {
		log.Info("answer not grounded, regenerating", zap.Int("hallucinations", result.HallucinationCount))
		answer, result, err = o.generate(ctx, query, chunks, texts, true, log)
	}
	if err != nil {
		log.Error("failed to generate answer", zap.Error(err), zap.Bool("provider_unavailable", ai.IsUnavailable(err)))
		return o.errorResponse()
	}

	mean := meanScore(chunks)
	resp = &Response{
		Answer:     answer,
		Sources:    sources(chunks),
		Confidence: mean * result.Confidence,
		Grounding:  &result,
	}
	if !result.IsValid {
		log.Warn("answer not grounded, returning fallback",
			zap.Int("hallucinations", result.HallucinationCount),
			zap.String("answer", utils.TruncateForLog(answer, 200)),
		)
		resp.Answer = o.opts.FallbackMessage
		resp.Confidence = 0
	}
	resp.Classification = o.classify(query, len(chunks), mean, result.IsValid)
	return resp
}

func (o *Orchestrator) generate(ctx context.Context, query string, chunks []vectorindex.RetrievedChunk, texts []string, strict bool, log *zap.Logger) (string, grounding.Result, error) {
	answer, err := o.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: buildSystemPrompt(o.opts.NoInformationMessage, strict),
		UserPrompt:   buildUserPrompt(query, chunks),
		Temperature:  o.opts.Temperature,
		MaxTokens:    o.opts.MaxTokens,
	})
	if err != nil {
		return "", grounding.Result{}, err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", grounding.Result{}, fmt.Errorf("%s returned an empty answer", o.completer.Model())
	}

	log.Debug("answer generated", zap.Bool("strict", strict), zap.String("answer", utils.TruncateForLog(answer, 200)))
	return answer, o.validator.Validate(answer, texts), nil
}

// classify applies the rules in order: no context, weak context (or an
// answer replaced by the fallback), purchase intent, full answer.
func (o *Orchestrator) classify(query string, chunks int, mean float64, grounded bool) analytics.Classification {
	switch {
	case chunks == 0:
		return analytics.Unanswered
	case mean < o.opts.PartialThreshold || !grounded:
		return analytics.AnsweredPartial
	case o.purchaseIntent(query):
		return analytics.PurchaseIntent
	default:
		return analytics.AnsweredFull
	}
}

func (o *Orchestrator) purchaseIntent(query string) bool {
	for _, tok := range analytics.Tokens(query) {
		if _, ok := o.purchase[tok]; ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) errorResponse() *Response {
	return &Response{
		Answer:         o.opts.FallbackMessage,
		Sources:        []Source{},
		Classification: analytics.Error,
	}
}

// fresh drops hits whose source record is gone or no longer published.
func (o *Orchestrator) fresh(ctx context.Context, hits []vectorindex.RetrievedChunk, log *zap.Logger) []vectorindex.RetrievedChunk {
	if o.records == nil {
		return hits
	}

	live := make(map[string]bool)
	out := make([]vectorindex.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		key := h.EntityType + "/" + strconv.FormatInt(h.EntityID, 10)
		ok, seen := live[key]
		if !seen {
			ok = o.isLive(ctx, h, log)
			live[key] = ok
		}
		if ok {
			out = append(out, h)
		}
	}
	return out
}

func (o *Orchestrator) isLive(ctx context.Context, h vectorindex.RetrievedChunk, log *zap.Logger) bool {
	var (
		published bool
		err       error
	)

	switch h.EntityType {
	case vectorindex.EntityJob:
		var job *content.Job
		if job, err = o.records.GetJob(ctx, h.EntityID); err == nil {
			published = job.Published()
		}
	case vectorindex.EntityCandidate:
		return false
	default:
		var doc *content.Document
		if doc, err = o.records.GetDocument(ctx, h.EntityType, h.EntityID); err == nil {
			published = doc.Published
		}
	}

	if err != nil {
		if !errors.Is(err, content.ErrNotFound) {
			log.Warn("failed to check chunk source", zap.String("point_id", h.PointID), zap.Error(err))
		}
		return false
	}
	if !published {
		log.Debug("skipping unpublished chunk", zap.String("point_id", h.PointID))
	}
	return published
}

func (o *Orchestrator) logAsync(entry analytics.Entry, log *zap.Logger) {
	if o.analytics == nil {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("query logging panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.opts.LogTimeout)
		defer cancel()

		if _, err := o.analytics.Log(ctx, entry); err != nil {
			log.Error("failed to log query", zap.Error(err))
		}
	}()
}

func meanScore(chunks []vectorindex.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range chunks {
		total += c.Score
	}
	return total / float64(len(chunks))
}

// sources lists each entity once with its best score, in retrieval order.
func sources(chunks []vectorindex.RetrievedChunk) []Source {
	out := make([]Source, 0, len(chunks))
	index := make(map[string]int)
	for _, c := range chunks {
		key := c.EntityType + "/" + strconv.FormatInt(c.EntityID, 10)
		if i, ok := index[key]; ok {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
			}
			continue
		}
		index[key] = len(out)
		out = append(out, Source{
			Title:      c.SourceTitle,
			URL:        c.SourceURL,
			Score:      c.Score,
			EntityType: c.EntityType,
			EntityID:   c.EntityID,
		})
	}
	return out
}
