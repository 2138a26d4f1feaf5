package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError("ollama", "embed", ErrProviderUnavailable, cause)

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ollama embed: provider unavailable: connection refused", err.Error())

	var providerErr *ProviderError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &providerErr))
	assert.Equal(t, "embed", providerErr.Op)
}

func TestNewErrorDeadlineBecomesTimeout(t *testing.T) {
	err := NewError("gemini", "chat", ErrProviderUnavailable, context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsUnavailable(err))
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{429, ErrRateLimited},
		{408, ErrTimeout},
		{500, ErrProviderUnavailable},
		{503, ErrProviderUnavailable},
		{400, ErrInvalidInput},
		{404, ErrInvalidInput},
	}

	for _, tt := range tests {
		assert.ErrorIs(t, KindForStatus(tt.code), tt.want, "status %d", tt.code)
	}
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(NewError("x", "op", ErrRateLimited, nil)))
	assert.False(t, IsUnavailable(NewError("x", "op", ErrInvalidInput, errors.New("bad"))))
	assert.False(t, IsUnavailable(nil))
}
