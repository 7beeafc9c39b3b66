package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ticketdesk/internal/httpx"
)

type anthropicProvider struct {
	apiKey string
	model  string
}

func (p *anthropicProvider) Complete(ctx context.Context, system string, turns []Turn) (string, Usage, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
	)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: anthropicMessages(turns),
	})
	if err != nil {
		slog.Error("llm anthropic error", "err", err)
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			slog.Info("llm anthropic response", "size", len(block.Text), "tokens_in", usage.InputTokens, "tokens_out", usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// anthropicMessages converts turns to message params. The API requires the
// conversation to open with a user turn, so leading assistant turns are
// dropped.
func anthropicMessages(turns []Turn) []anthropic.MessageParam {
	for len(turns) > 0 && turns[0].Role != roleUser {
		turns = turns[1:]
	}
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		if t.Role == roleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
	}
	return out
}
