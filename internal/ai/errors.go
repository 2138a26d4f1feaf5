package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable marks a provider that is unreachable or answering with server errors.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrRateLimited marks a provider rejecting calls because of quota or rate limits.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrInvalidInput marks a request the provider refused as malformed.
	ErrInvalidInput = errors.New("invalid provider input")
	// ErrTimeout marks a call that ran past its deadline.
	ErrTimeout = errors.New("provider timeout")
)

// ProviderError carries the failure kind together with its cause.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError wraps err with a failure kind. A context deadline always becomes ErrTimeout.
func NewError(provider, op string, kind, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	if kind == nil {
		kind = ErrProviderUnavailable
	}
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

// KindForStatus maps an HTTP-like status code to a failure kind.
func KindForStatus(code int) error {
	switch {
	case code == 429:
		return ErrRateLimited
	case code == 408:
		return ErrTimeout
	case code >= 500:
		return ErrProviderUnavailable
	case code >= 400:
		return ErrInvalidInput
	default:
		return ErrProviderUnavailable
	}
}

// IsUnavailable reports whether err should trigger a degraded fallback path:
// the provider is down, throttling or too slow.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
