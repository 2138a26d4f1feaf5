package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/logger"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultEmbeddingModel   = "gemini-embedding-001"
	defaultEmbeddingTimeout = 15 * time.Second
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces embeddings with the Gemini embedding models.
type Embedder struct {
	models     contentEmbedder
	model      string
	dimensions int32
	timeout    time.Duration
	logger     *zap.Logger
}

// NewEmbedder wires an Embedder to the SDK client. A positive dimensions value
// asks the model for truncated output vectors.
func NewEmbedder(client *genai.Client, opts Options, dimensions int, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("gemini client is required")
	}

	model := strings.TrimSpace(opts.EmbeddingModel)
	if model == "" {
		model = defaultEmbeddingModel
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}

	return &Embedder{
		models:     client.Models,
		model:      model,
		dimensions: int32(dimensions),
		timeout:    timeout,
		logger:     logger.WithCommonFields(log, providerName, model),
	}, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// Embed implements ai.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ai.NewError(providerName, "embed", ai.ErrInvalidInput, errors.New("text must not be empty"))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var cfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(e.dimensions)}
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		e.logger.Debug("gemini embedding failed", zap.Error(err))
		return nil, classify("embed", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, ai.NewError(providerName, "embed", ai.ErrProviderUnavailable, errors.New("empty embedding returned"))
	}

	return resp.Embeddings[0].Values, nil
}
