package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"repochat/internal/domain/models"
	"repochat/internal/httputil"
	"repochat/internal/service/chat"
	"repochat/internal/stream"
)

const keepaliveInterval = 10 * time.Second

// SSEHandler streams assistant responses to clients via Server-Sent
// Events. A client that reconnects mid-stream gets the buffered events
// replayed before live ones; a client arriving after the stream is gone
// gets the stored terminal state.
type SSEHandler struct {
	hub    *stream.Hub
	chat   *chat.Service
	logger *slog.Logger
}

// NewSSEHandler creates an SSEHandler.
func NewSSEHandler(hub *stream.Hub, chatSvc *chat.Service, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, chat: chatSvc, logger: logger}
}

// StreamMessage handles GET /api/v1/messages/{messageID}/stream.
func (h *SSEHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	messageID, ok := pathValue(w, r, "messageID")
	if !ok {
		return
	}

	// Ownership check before any stream state leaks.
	msg, err := h.chat.GetMessage(r.Context(), messageID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientID := uuid.New().String()
	h.logger.Debug("sse client connected", "message_id", messageID, "client_id", clientID)

	st := h.hub.Get(messageID)
	if st == nil {
		// Stream already retired; synthesize the terminal event from the
		// stored message so late clients still resolve.
		h.writeStoredState(w, flusher, msg)
		return
	}

	events := st.Subscribe(clientID)
	defer st.Unsubscribe(clientID)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				h.logger.Debug("sse stream ended", "message_id", messageID, "client_id", clientID)
				return
			}
			fmt.Fprint(w, event)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Debug("sse client disconnected", "message_id", messageID, "client_id", clientID)
			return
		}
	}
}

// writeStoredState emits the terminal event for an already-finished
// message.
func (h *SSEHandler) writeStoredState(w http.ResponseWriter, flusher http.Flusher, msg *models.Message) {
	var event string
	var err error

	switch msg.Status {
	case models.MessageStatusError:
		errMsg := "response generation failed"
		if msg.Error != nil {
			errMsg = *msg.Error
		}
		event, err = models.NewMessageErrorEvent(msg.ID, errMsg)
	case models.MessageStatusComplete, models.MessageStatusCancelled:
		event, err = models.NewMessageCompleteEvent(msg.ID, msg.Status, msg.Truncated)
	default:
		// Streaming per storage but no live stream: the server restarted
		// mid-response. Report it as an error so the client stops waiting.
		event, err = models.NewMessageErrorEvent(msg.ID, "stream no longer active")
	}
	if err != nil {
		return
	}

	fmt.Fprint(w, event)
	flusher.Flush()
}
