// Package ai defines the contracts the matching and retrieval core uses to talk
// to embedding and chat providers.
package ai

import "context"

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// CompletionRequest is a single system+user prompt exchange.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int32
}

// Completer generates text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Model() string
}
