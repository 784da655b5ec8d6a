package agent

import (
	"context"
	"fmt"
)

// Provider is a minimal chat-completion interface over an LLM API.
type Provider interface {
	// Complete sends a single-prompt completion request and returns the text.
	Complete(ctx context.Context, request CompletionRequest) (string, error)

	// Name returns the provider name
	Name() string
}

// CompletionRequest contains the request parameters for one completion.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// NewProvider creates an LLM provider for the given name.
func NewProvider(name, apiKey string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}
