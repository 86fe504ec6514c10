package llm

import (
	"context"
)

// Client is a generative language model provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is a single-turn prompt.
type CompletionRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Completion is the text a provider returned.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}
