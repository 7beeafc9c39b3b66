// Package llm implements the per-module data assistant and the chat
// completion providers behind it.
package llm

import (
	"context"
	"fmt"

	"ticketdesk/internal/config"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

// Turn is one prior message of a conversation.
type Turn struct {
	Role    string
	Content string
}

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Provider completes a conversation given a system prompt and the turns so
// far; the last turn is the user's question.
type Provider interface {
	Complete(ctx context.Context, system string, turns []Turn) (string, Usage, error)
}

// NewProvider returns the provider selected by llm_provider.
func NewProvider(cfg config.Config) (Provider, error) {
	apiKey, err := cfg.LLMAPIKey()
	if err != nil {
		return nil, err
	}
	switch cfg.LLMProvider {
	case "anthropic":
		model := cfg.LLMModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return &anthropicProvider{apiKey: apiKey, model: model}, nil
	case "openai":
		model := cfg.LLMModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return &openAIProvider{apiKey: apiKey, model: model, endpoint: openAIEndpoint}, nil
	default:
		return nil, fmt.Errorf("unsupported llm_provider %q", cfg.LLMProvider)
	}
}
