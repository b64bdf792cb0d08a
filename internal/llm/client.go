// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	// JSON asks providers that support it to constrain output to a JSON object.
	JSON bool
}

// ChatMessage represents a chat message for LLM. Role is "user" or "assistant".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// Keys holds the API key of every provider.
type Keys struct {
	Anthropic string
	OpenAI    string
	Gemini    string
}

// NewClient creates a new LLM client based on provider.
func NewClient(ctx context.Context, provider Provider, keys Keys) (Client, error) {
	switch provider {
	case ProviderAnthropic, "":
		return NewAnthropicClient(keys.Anthropic)
	case ProviderOpenAI:
		return NewOpenAIClient(keys.OpenAI)
	case ProviderGemini:
		return NewGeminiClient(ctx, keys.Gemini)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

func withDefaults(req *CompletionRequest, model string) (string, int) {
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return model, maxTokens
}
