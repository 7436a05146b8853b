package handler

import (
	"log/slog"
	"net/http"

	"repochat/internal/domain/models"
	"repochat/internal/httputil"
	"repochat/internal/service/prefs"
)

// PreferencesHandler serves GET/PATCH /api/v1/preferences.
type PreferencesHandler struct {
	prefs  *prefs.Service
	logger *slog.Logger
}

// NewPreferencesHandler creates a PreferencesHandler.
func NewPreferencesHandler(prefsSvc *prefs.Service, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefsSvc, logger: logger}
}

// GetPreferences handles GET /api/v1/preferences.
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	preferences, err := h.prefs.Get(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, preferences)
}

// UpdatePreferences handles PATCH /api/v1/preferences.
func (h *PreferencesHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req models.UpdatePreferencesRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	preferences, err := h.prefs.Update(r.Context(), userID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, preferences)
}
