package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"repochat/internal/domain/models"
	"repochat/internal/service/llm"
	"repochat/internal/stream"
)

const (
	// How long a finished stream stays in the hub so late subscribers can
	// still replay it before falling back to the stored message.
	streamLingerDuration = 60 * time.Second

	commitTimeout = 10 * time.Second
)

// runStream consumes one provider stream to completion: fans deltas out
// through the hub, accumulates the full text, and commits the final
// message state exactly once. Runs as a goroutine per assistant message.
func (s *Service) runStream(ctx context.Context, st *stream.Stream, messageID string, provider llm.Provider, req *llm.Request) {
	defer s.retireStream(st, messageID)

	events, err := provider.StreamResponse(ctx, req)
	if err != nil {
		s.finishWithError(st, messageID, "", err)
		return
	}

	var sb strings.Builder
	index := 0

	for ev := range events {
		switch {
		case ev.Err != nil:
			if ctx.Err() != nil {
				s.finishCancelled(st, messageID, sb.String())
				return
			}
			s.finishWithError(st, messageID, sb.String(), ev.Err)
			return

		case ev.Done:
			truncated := ev.StopReason == "max_tokens"
			s.commit(messageID, sb.String(), models.MessageStatusComplete, truncated, nil)
			if event, err := models.NewMessageCompleteEvent(messageID, models.MessageStatusComplete, truncated); err == nil {
				st.Publish(event)
			}
			s.logger.Info("stream complete",
				"message_id", messageID,
				"stop_reason", ev.StopReason,
				"output_tokens", ev.OutputTokens)
			return

		case ev.Text != "":
			sb.WriteString(ev.Text)
			if event, err := models.NewDeltaEvent(messageID, index, ev.Text); err == nil {
				st.Publish(event)
			}
			index++
		}
	}

	// Channel closed without a terminal event. Treat as cancellation if
	// the context is gone, otherwise as a provider fault.
	if ctx.Err() != nil {
		s.finishCancelled(st, messageID, sb.String())
		return
	}
	s.finishWithError(st, messageID, sb.String(), errStreamTruncated)
}

var errStreamTruncated = errors.New("provider stream ended unexpectedly")

// finishCancelled commits whatever text accumulated before the interrupt.
// The partial stays in the log, flagged truncated.
func (s *Service) finishCancelled(st *stream.Stream, messageID, partial string) {
	s.commit(messageID, partial, models.MessageStatusCancelled, true, nil)
	if event, err := models.NewMessageCompleteEvent(messageID, models.MessageStatusCancelled, true); err == nil {
		st.Publish(event)
	}
	s.logger.Info("stream cancelled", "message_id", messageID, "partial_len", len(partial))
}

func (s *Service) finishWithError(st *stream.Stream, messageID, partial string, cause error) {
	errMsg := cause.Error()
	s.commit(messageID, partial, models.MessageStatusError, partial != "", &errMsg)
	if event, err := models.NewMessageErrorEvent(messageID, errMsg); err == nil {
		st.Publish(event)
	}
	s.logger.Error("stream failed", "message_id", messageID, "error", cause)
}

// commit persists the terminal message state. Uses a fresh context: the
// stream context may already be cancelled and the commit must still land.
func (s *Service) commit(messageID, content, status string, truncated bool, errMsg *string) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	err := s.messages.Commit(ctx, messageID, content, status, truncated, errMsg, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to commit message", "message_id", messageID, "status", status, "error", err)
	}
}

// retireStream closes the stream and removes it from the hub after the
// linger window.
func (s *Service) retireStream(st *stream.Stream, messageID string) {
	st.Close()
	time.AfterFunc(streamLingerDuration, func() {
		s.hub.Remove(messageID)
	})
}
