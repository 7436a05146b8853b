package models

import (
	"encoding/json"
	"fmt"
)

// SSE event type constants
const (
	SSEEventMessageStart    = "message_start"    // Assistant message streaming has begun
	SSEEventDelta           = "delta"            // Incremental assistant content
	SSEEventMessageComplete = "message_complete" // Message finished successfully
	SSEEventMessageError    = "message_error"    // Message encountered an error
)

// MessageStartEvent signals that streaming has begun for a message
type MessageStartEvent struct {
	MessageID string `json:"message_id"`
	Model     string `json:"model"`
}

// DeltaEvent contains one incremental text fragment. Index is the
// 0-based position of the fragment within the stream; observers apply
// deltas in index order.
type DeltaEvent struct {
	MessageID string `json:"message_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
}

// MessageCompleteEvent signals that the message has finished.
// Truncated is set when the stream was cancelled and the committed
// content is a prefix of what the model would have produced.
type MessageCompleteEvent struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Truncated bool   `json:"truncated"`
}

// MessageErrorEvent signals that the stream failed. Whatever content had
// accumulated before the failure is already committed (truncated).
type MessageErrorEvent struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// FormatSSE formats an SSE event for transmission:
//
//	event: event_name
//	data: {"field": "value"}
func FormatSSE(eventType string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SSE event data: %w", err)
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)), nil
}

// Helper constructors for common events

// NewMessageStartEvent creates a message_start SSE event
func NewMessageStartEvent(messageID, model string) (string, error) {
	return FormatSSE(SSEEventMessageStart, MessageStartEvent{
		MessageID: messageID,
		Model:     model,
	})
}

// NewDeltaEvent creates a delta SSE event
func NewDeltaEvent(messageID string, index int, text string) (string, error) {
	return FormatSSE(SSEEventDelta, DeltaEvent{
		MessageID: messageID,
		Index:     index,
		Text:      text,
	})
}

// NewMessageCompleteEvent creates a message_complete SSE event
func NewMessageCompleteEvent(messageID, status string, truncated bool) (string, error) {
	return FormatSSE(SSEEventMessageComplete, MessageCompleteEvent{
		MessageID: messageID,
		Status:    status,
		Truncated: truncated,
	})
}

// NewMessageErrorEvent creates a message_error SSE event
func NewMessageErrorEvent(messageID, errorMsg string) (string, error) {
	return FormatSSE(SSEEventMessageError, MessageErrorEvent{
		MessageID: messageID,
		Error:     errorMsg,
	})
}
