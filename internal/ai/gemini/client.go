// Package gemini implements the chat and embedding providers on top of the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/talentcore/internal/ai"
	"github.com/spigell/talentcore/internal/logger"
	"github.com/spigell/talentcore/internal/utils"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	providerName = "gemini"

	defaultModel        = "gemini-2.5-flash"
	defaultMaxRetries   = 3
	defaultTimeout      = 60 * time.Second
	defaultMaxLogLength = 400

	retryBackoff  = 2 * time.Second
	maxQuotaDelay = 30 * time.Second
)

var sleep = time.Sleep

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(s|sec|secs|second|seconds|ms)?`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type sdkChats struct {
	chats *genai.Chats
}

func (s sdkChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return s.chats.Create(ctx, model, config, history)
}

// Options configure the Gemini providers.
type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxRetries     int
	Timeout        time.Duration
	MaxLogLength   int
}

// NewClient creates the shared SDK client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// Generator sends system+user prompts through a fresh chat session per call.
type Generator struct {
	chats        chatCreator
	model        string
	maxRetries   int
	timeout      time.Duration
	maxLogLength int
	logger       *zap.Logger
}

// NewGenerator wires a Generator to the SDK client.
func NewGenerator(client *genai.Client, opts Options, log *zap.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("gemini client is required")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	g := &Generator{
		chats:        sdkChats{chats: client.Chats},
		model:        model,
		maxRetries:   opts.MaxRetries,
		timeout:      opts.Timeout,
		maxLogLength: opts.MaxLogLength,
		logger:       logger.WithCommonFields(log, providerName, model),
	}

	return g, nil
}

// Model returns the chat model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Complete implements ai.Completer.
func (g *Generator) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}

	return g.send(ctx, req.SystemPrompt, req.UserPrompt, cfg)
}

// GenerateContent sends message with the given system instruction using default generation settings.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	return g.send(ctx, system, message, &genai.GenerateContentConfig{})
}

func (g *Generator) send(ctx context.Context, system, message string, cfg *genai.GenerateContentConfig) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", ai.NewError(providerName, "chat", ai.ErrInvalidInput, errors.New("message must not be empty"))
	}

	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	log := logger.WithFields(g.logger)
	attempts := g.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		output, err := g.sendOnce(ctx, cfg, message)
		if err == nil {
			log.Debug("gemini chat completed",
				zap.Int("attempt", attempt),
				zap.String("response", utils.TruncateForLog(output, g.logLimit())),
			)
			return output, nil
		}

		lastErr = err
		delay, retry := retryDelay(err)
		if !retry || attempt == attempts {
			break
		}

		log.Warn("gemini chat failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := waitFor(ctx, delay); err != nil {
			return "", ai.NewError(providerName, "chat", ai.ErrTimeout, err)
		}
	}

	return "", classify("chat", lastErr)
}

func (g *Generator) sendOnce(ctx context.Context, cfg *genai.GenerateContentConfig, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout())
	defer cancel()

	chat, err := g.chats.Create(callCtx, g.model, cfg, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(callCtx, genai.Part{Text: message})
	if err != nil {
		return "", err
	}

	return responseText(resp)
}

func (g *Generator) attempts() int {
	if g.maxRetries <= 0 {
		return defaultMaxRetries
	}
	return g.maxRetries
}

func (g *Generator) callTimeout() time.Duration {
	if g.timeout <= 0 {
		return defaultTimeout
	}
	return g.timeout
}

func (g *Generator) logLimit() int {
	if g.maxLogLength <= 0 {
		return defaultMaxLogLength
	}
	return g.maxLogLength
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// retryDelay reports whether err is worth another attempt and how long to wait first.
func retryDelay(err error) (time.Duration, bool) {
	apiErr, ok := asAPIError(err)
	if !ok {
		return retryBackoff, errors.Is(err, context.DeadlineExceeded)
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		delay := quotaDelay(apiErr.Message)
		if delay > maxQuotaDelay {
			return 0, false
		}
		return delay, true
	case apiErr.Code >= http.StatusInternalServerError:
		return retryBackoff, true
	default:
		return 0, false
	}
}

func quotaDelay(message string) time.Duration {
	match := retryDelayPattern.FindStringSubmatch(message)
	if match == nil {
		return retryBackoff
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return retryBackoff
	}

	if strings.EqualFold(match[2], "ms") {
		return time.Duration(value * float64(time.Millisecond))
	}
	return time.Duration(value * float64(time.Second))
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}

	return genai.APIError{}, false
}

func classify(op string, err error) error {
	if apiErr, ok := asAPIError(err); ok {
		return ai.NewError(providerName, op, ai.KindForStatus(apiErr.Code), err)
	}
	return ai.NewError(providerName, op, ai.ErrProviderUnavailable, err)
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
