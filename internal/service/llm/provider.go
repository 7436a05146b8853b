// Package llm abstracts the conversational AI backend. Providers take the
// session history plus a repository-aware system prompt and return an
// ordered, cancellable stream of text fragments; the chat service never
// sees provider-specific wire formats.
package llm

import "context"

// Message is one turn of conversation history sent to a provider.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request contains the parameters for a generation request.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// StreamEvent is one item of a provider's response stream. Exactly one of
// the cases applies: a text fragment, a terminal error, or completion
// metadata (Done). After an error or Done event the channel is closed.
type StreamEvent struct {
	Text string
	Err  error

	Done         bool
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Provider is the interface all LLM backends implement.
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "ollama")
	Name() string

	// SupportsModel returns true if the provider supports the given model.
	SupportsModel(model string) bool

	// StreamResponse starts a generation and returns a channel of events.
	// Tokens arrive in order; cancelling ctx stops the stream, after which
	// the channel is closed. Transport failures surface as a single Err
	// event - the provider does not retry.
	StreamResponse(ctx context.Context, req *Request) (<-chan StreamEvent, error)
}
