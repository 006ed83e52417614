package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message roles understood by both providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("llm returned an empty completion")

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string // Model name (e.g., "gpt-4o", "claude-sonnet-4-5-20250929")
}

// Client completes a conversation with free text.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
}

// CompletionRequest carries the system framing and the accumulated history.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Message represents a conversation message.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Completion is the provider's answer.
type Completion struct {
	Content          string
	FinishReason     string // "stop", "length"
	PromptTokens     int
	CompletionTokens int
}

// NewClient selects the provider based on cfg.Provider ("openai" or "anthropic").
// Defaults to OpenAI if no provider is specified.
func NewClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

func Temp(t float64) *float64 {
	return &t
}
