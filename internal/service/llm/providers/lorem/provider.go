// Package lorem is a mock provider that streams lorem ipsum text. Used for
// development and testing without real API keys.
package lorem

import (
	"context"
	"fmt"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	"repochat/internal/service/llm"
)

const defaultMaxWords = 120

// Provider generates lorem ipsum responses.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow", "lorem-cutoff"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// getStreamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second
// - lorem-fast: 30 words/second
// - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond
	}
	if strings.Contains(model, "instant") {
		return 0
	}
	return 100 * time.Millisecond
}

// isCutoffModel returns true if the model simulates a max_tokens cutoff.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff") || strings.Contains(model, "small")
}

// StreamResponse streams generated words one at a time. Speed varies by
// model name (lorem-slow, lorem-fast, lorem-instant); cutoff models stop
// early with stop reason "max_tokens".
func (p *Provider) StreamResponse(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model %q is not supported by lorem provider", req.Model)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("request has no messages")
	}

	maxWords := req.MaxTokens
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}

	events := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(events)

		targetWords := maxWords
		if isCutoffModel(req.Model) {
			// Cutoff models generate 50% more to simulate hitting the limit.
			targetWords = maxWords + maxWords/2
		}

		words := strings.Fields(p.generateText(targetWords))
		delay := getStreamDelay(req.Model)
		stopReason := "end_turn"

		sent := 0
		for _, word := range words {
			if sent >= maxWords {
				stopReason = "max_tokens"
				break
			}

			select {
			case events <- llm.StreamEvent{Text: word + " "}:
			case <-ctx.Done():
				events <- llm.StreamEvent{Err: ctx.Err()}
				return
			}
			sent++

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					events <- llm.StreamEvent{Err: ctx.Err()}
					return
				}
			}
		}

		events <- llm.StreamEvent{
			Done:         true,
			StopReason:   stopReason,
			InputTokens:  p.estimateTokens(req),
			OutputTokens: sent,
		}
	}()

	return events, nil
}

// generateText generates lorem ipsum with approximately targetWords words.
func (p *Provider) generateText(targetWords int) string {
	var sb strings.Builder
	wordCount := 0

	for wordCount < targetWords {
		sentence := p.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")

		wordCount += len(strings.Fields(sentence))
	}

	return strings.TrimSpace(sb.String())
}

// estimateTokens approximates input token count by word count.
func (p *Provider) estimateTokens(req *llm.Request) int {
	total := len(strings.Fields(req.System))
	for _, msg := range req.Messages {
		total += len(strings.Fields(msg.Content))
	}
	return total
}
