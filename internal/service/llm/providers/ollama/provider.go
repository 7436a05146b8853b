// Package ollama implements a provider for a local Ollama server using its
// streaming /api/chat endpoint (newline-delimited JSON).
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"repochat/internal/service/llm"
)

// Provider streams completions from an Ollama server.
type Provider struct {
	baseURL string
	client  *http.Client
}

// NewProvider creates an Ollama provider for the given base URL
// (e.g., "http://localhost:11434").
func NewProvider(baseURL string) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No overall timeout: generations stream for minutes. Cancellation
		// comes from the request context.
		client: &http.Client{},
	}
}

func (p *Provider) Name() string {
	return "ollama"
}

// SupportsModel reports whether this provider handles the model. Ollama
// serves arbitrary local models, so anything not claimed by a hosted
// provider prefix is accepted.
func (p *Provider) SupportsModel(model string) bool {
	return model != "" &&
		!strings.HasPrefix(model, "claude-") &&
		!strings.HasPrefix(model, "lorem-")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// StreamResponse starts a streaming chat completion against /api/chat.
func (p *Provider) StreamResponse(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("request has no messages")
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
		Options:  maxTokenOptions(req.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var chunk chatChunk
		if json.NewDecoder(resp.Body).Decode(&chunk) == nil && chunk.Error != "" {
			return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, chunk.Error)
		}
		return nil, fmt.Errorf("ollama error %d", resp.StatusCode)
	}

	events := make(chan llm.StreamEvent, 64)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk chatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				p.emit(ctx, events, llm.StreamEvent{Err: fmt.Errorf("decoding ollama chunk: %w", err)})
				return
			}
			if chunk.Error != "" {
				p.emit(ctx, events, llm.StreamEvent{Err: fmt.Errorf("ollama: %s", chunk.Error)})
				return
			}

			if chunk.Message.Content != "" {
				if !p.emit(ctx, events, llm.StreamEvent{Text: chunk.Message.Content}) {
					return
				}
			}

			if chunk.Done {
				p.emit(ctx, events, llm.StreamEvent{
					Done:         true,
					StopReason:   chunk.DoneReason,
					InputTokens:  chunk.PromptEvalCount,
					OutputTokens: chunk.EvalCount,
				})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			p.emit(ctx, events, llm.StreamEvent{Err: err})
			return
		}
		p.emit(ctx, events, llm.StreamEvent{Err: fmt.Errorf("ollama stream ended without done marker")})
	}()

	return events, nil
}

func (p *Provider) emit(ctx context.Context, ch chan<- llm.StreamEvent, ev llm.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func maxTokenOptions(maxTokens int) *chatOptions {
	if maxTokens <= 0 {
		return nil
	}
	return &chatOptions{NumPredict: maxTokens}
}

// Ping checks that the Ollama server is reachable. Used at startup to log
// a warning rather than fail hard when the server is down.
func (p *Provider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	return nil
}
