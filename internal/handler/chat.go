package handler

import (
	"log/slog"
	"net/http"

	"repochat/internal/httputil"
	"repochat/internal/service/chat"
)

// ChatHandler serves session CRUD and message submission.
type ChatHandler struct {
	chat   *chat.Service
	logger *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chatSvc *chat.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chatSvc, logger: logger}
}

// CreateSession handles POST /api/v1/sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req chat.CreateSessionRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chat.CreateSession(r.Context(), userID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, session)
}

// ListSessions handles GET /api/v1/sessions.
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	sessions, err := h.chat.ListSessions(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession handles GET /api/v1/sessions/{sessionID}.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID, ok := pathValue(w, r, "sessionID")
	if !ok {
		return
	}

	session, err := h.chat.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, session)
}

type updateSessionRequest struct {
	Title string `json:"title"`
}

// UpdateSession handles PATCH /api/v1/sessions/{sessionID}.
func (h *ChatHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID, ok := pathValue(w, r, "sessionID")
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chat.UpdateSessionTitle(r.Context(), sessionID, userID, req.Title); err != nil {
		handleError(w, err)
		return
	}

	session, err := h.chat.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /api/v1/sessions/{sessionID}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID, ok := pathValue(w, r, "sessionID")
	if !ok {
		return
	}

	if err := h.chat.DeleteSession(r.Context(), sessionID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/v1/sessions/{sessionID}/messages.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID, ok := pathValue(w, r, "sessionID")
	if !ok {
		return
	}

	messages, err := h.chat.ListMessages(r.Context(), sessionID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// CreateMessage handles POST /api/v1/sessions/{sessionID}/messages.
// Returns 202: the assistant response streams separately.
func (h *ChatHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	sessionID, ok := pathValue(w, r, "sessionID")
	if !ok {
		return
	}

	var req chat.SendQueryRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chat.SendQuery(r.Context(), sessionID, userID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, result)
}

// InterruptMessage handles POST /api/v1/messages/{messageID}/interrupt.
func (h *ChatHandler) InterruptMessage(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	messageID, ok := pathValue(w, r, "messageID")
	if !ok {
		return
	}

	if err := h.chat.Interrupt(r.Context(), messageID, userID); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
