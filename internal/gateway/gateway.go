// Package gateway is the narrow adapter in front of the external language
// model. It owns the retry/backoff policy; callers only see typed failures
// after retries are exhausted.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited is returned after retries when the upstream keeps
	// answering 429.
	ErrRateLimited = errors.New("model rate limited")
	// ErrTimeout is returned after retries when the call deadline keeps
	// being exceeded.
	ErrTimeout = errors.New("model call timed out")
	// ErrUpstream covers malformed-request rejections and persistent
	// upstream failures.
	ErrUpstream = errors.New("model upstream error")
	// ErrEmptyResponse is returned when the upstream answered 200 with no
	// usable text.
	ErrEmptyResponse = errors.New("model returned empty response")
)

// Options tunes a single generation call. Zero values fall back to the
// provider's configured defaults.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Provider generates text for a prompt. Implementations are stateless per
// call and must enforce a per-call timeout shorter than the caller's
// overall deadline.
type Provider interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Retryable reports whether a classified gateway error is worth another
// attempt. Malformed-request upstream failures and empty responses are not.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
