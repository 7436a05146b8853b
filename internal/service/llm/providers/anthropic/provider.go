// Package anthropic implements the Anthropic provider using the official
// Go SDK's streaming Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"repochat/internal/service/llm"
)

const defaultMaxTokens = 4096

// Provider streams completions from the Anthropic Messages API.
type Provider struct {
	client *anthropic.Client
}

// NewProvider creates an Anthropic provider. The API key must be non-empty.
func NewProvider(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Provider{client: &client}, nil
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// StreamResponse starts a streaming generation. Events are emitted in
// arrival order; the channel closes after a Done or Err event.
func (p *Provider) StreamResponse(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	events := make(chan llm.StreamEvent, 64)

	go func() {
		defer close(events)

		stream := p.client.Messages.NewStreaming(ctx, params)
		message := anthropic.Message{}

		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				emit(ctx, events, llm.StreamEvent{Err: fmt.Errorf("accumulating stream event: %w", err)})
				return
			}

			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
					if !emit(ctx, events, llm.StreamEvent{Text: e.Delta.Text}) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				emit(ctx, events, llm.StreamEvent{Err: ctx.Err()})
				return
			}
			emit(ctx, events, llm.StreamEvent{Err: fmt.Errorf("anthropic stream: %w", err)})
			return
		}

		emit(ctx, events, llm.StreamEvent{
			Done:         true,
			StopReason:   string(message.StopReason),
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		})
	}()

	return events, nil
}

// emit sends an event unless the consumer has gone away.
func emit(ctx context.Context, ch chan<- llm.StreamEvent, ev llm.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func buildParams(req *llm.Request) (anthropic.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("request has no messages")
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	return params, nil
}
