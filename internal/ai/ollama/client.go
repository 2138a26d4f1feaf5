// Package ollama talks to an Ollama-compatible HTTP endpoint for embeddings and chat.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/utils"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	providerName = "ollama"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	retryBackoff      = time.Second
)

// Options configure a Client. Embedding and chat may use different models on the same host.
type Options struct {
	BaseURL        string
	Token          string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
}

// Client implements ai.Embedder and ai.Completer.
type Client struct {
	http           *resty.Client
	model          string
	embeddingModel string
	maxRetries     int
	logger         *zap.Logger
}

// New builds a Client for the given endpoint.
func New(opts Options, log *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("ollama base url is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token := strings.TrimSpace(opts.Token); token != "" {
		httpClient.SetAuthToken(token)
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		http:           httpClient,
		model:          strings.TrimSpace(opts.Model),
		embeddingModel: strings.TrimSpace(opts.EmbeddingModel),
		maxRetries:     maxRetries,
		logger:         logger.WithCommonFields(log, providerName, opts.Model),
	}, nil
}

// Model returns the chat model name.
func (c *Client) Model() string {
	return c.model
}

// EmbeddingModel returns the embedding model name.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// Embedder returns the client as an ai.Embedder reporting the embedding model,
// so embedding caches are keyed by the model that produced the vectors.
func (c *Client) Embedder() ai.Embedder {
	return embedder{c}
}

type embedder struct {
	*Client
}

func (e embedder) Model() string {
	return e.embeddingModel
}

// Embed implements ai.Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ai.NewError(providerName, "embed", ai.ErrInvalidInput, errors.New("text must not be empty"))
	}

	body, err := c.post(ctx, "embed", "/api/embed", map[string]any{
		"model": c.embeddingModel,
		"input": text,
	})
	if err != nil {
		return nil, err
	}

	values := gjson.GetBytes(body, "embeddings.0").Array()
	if len(values) == 0 {
		return nil, ai.NewError(providerName, "embed", ai.ErrProviderUnavailable, errors.New("empty embedding returned"))
	}

	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v.Float())
	}

	return vector, nil
}

// Complete implements ai.Completer.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	if strings.TrimSpace(req.UserPrompt) == "" {
		return "", ai.NewError(providerName, "chat", ai.ErrInvalidInput, errors.New("user prompt must not be empty"))
	}

	messages := make([]map[string]string, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.UserPrompt})

	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body, err := c.post(ctx, "chat", "/api/chat", map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	})
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(gjson.GetBytes(body, "message.content").String())
	if content == "" {
		return "", ai.NewError(providerName, "chat", ai.ErrProviderUnavailable, errors.New("empty response"))
	}

	return content, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(path)
		if err != nil {
			lastErr = ai.NewError(providerName, op, ai.ErrProviderUnavailable, err)
		} else if resp.IsSuccess() {
			return resp.Body(), nil
		} else {
			lastErr = ai.NewError(providerName, op, ai.KindForStatus(resp.StatusCode()), statusError(resp))
			if !retryable(resp.StatusCode()) {
				return nil, lastErr
			}
		}

		if attempt == c.maxRetries || errors.Is(lastErr, ai.ErrTimeout) {
			break
		}

		c.logger.Warn("ollama request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if err := utils.WaitFor(ctx, retryBackoff*time.Duration(attempt)); err != nil {
			return nil, ai.NewError(providerName, op, ai.ErrTimeout, err)
		}
	}

	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func statusError(resp *resty.Response) error {
	message := gjson.GetBytes(resp.Body(), "error").String()
	if message == "" {
		message = utils.TruncateForLog(resp.String(), 200)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode(), message)
}
