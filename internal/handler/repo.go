package handler

import (
	"log/slog"
	"net/http"

	"repochat/internal/httputil"
	"repochat/internal/repotree"
	"repochat/internal/service/ingest"
)

// RepoHandler serves repository loading, listing, tree and file content.
type RepoHandler struct {
	ingest *ingest.Service
	logger *slog.Logger
}

// NewRepoHandler creates a RepoHandler.
func NewRepoHandler(ingestSvc *ingest.Service, logger *slog.Logger) *RepoHandler {
	return &RepoHandler{ingest: ingestSvc, logger: logger}
}

type loadRepoRequest struct {
	URL string `json:"url"`
}

// LoadRepo handles POST /api/v1/repos.
// Loading an already loaded URL refreshes the stored copy.
func (h *RepoHandler) LoadRepo(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	var req loadRepoRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	repo, err := h.ingest.LoadRepo(r.Context(), userID, req.URL)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, repo)
}

// ListRepos handles GET /api/v1/repos.
func (h *RepoHandler) ListRepos(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	repos, err := h.ingest.ListRepos(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"repos": repos})
}

// GetRepo handles GET /api/v1/repos/{repoID}.
func (h *RepoHandler) GetRepo(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	repoID, ok := pathValue(w, r, "repoID")
	if !ok {
		return
	}

	repo, err := h.ingest.GetRepo(r.Context(), repoID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, repo)
}

// GetTree handles GET /api/v1/repos/{repoID}/tree.
// Siblings come back directories-first, name-ascending by default; with
// ?order=structural the response preserves ingestion order instead.
func (h *RepoHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	repoID, ok := pathValue(w, r, "repoID")
	if !ok {
		return
	}

	forest, err := h.ingest.GetTree(r.Context(), repoID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	if r.URL.Query().Get("order") != "structural" {
		forest = repotree.Sorted(forest)
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"repo_id": repoID,
		"tree":    forest,
		"count":   repotree.Count(forest),
	})
}

// GetFileContent handles GET /api/v1/repos/{repoID}/file?path=...
func (h *RepoHandler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	repoID, ok := pathValue(w, r, "repoID")
	if !ok {
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.RespondError(w, http.StatusBadRequest, "missing path query parameter")
		return
	}

	content, err := h.ingest.GetFileContent(r.Context(), repoID, userID, path)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, content)
}

// CreateFile handles POST /api/v1/repos/{repoID}/files.
func (h *RepoHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)
	repoID, ok := pathValue(w, r, "repoID")
	if !ok {
		return
	}

	var req ingest.CreateFileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.ingest.CreateFile(r.Context(), repoID, userID, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, entry)
}

// HealthCheck handles GET /health.
func (h *RepoHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
