// Package llm provides a provider-neutral client for single-turn text
// generation against hosted inference backends.
package llm

import "context"

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Response carries the generated text and token accounting when available.
type Response struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
}

// Client completes a single prompt. Implementations own their timeout and
// must be safe for concurrent use once constructed.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
