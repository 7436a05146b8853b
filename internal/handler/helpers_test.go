package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"repochat/internal/domain"
	"repochat/internal/repotree"
)

func TestHandleError_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &domain.ValidationError{Message: "bad input"}, http.StatusBadRequest},
		{"not found typed", &domain.NotFoundError{Message: "gone"}, http.StatusNotFound},
		{"not found wrapped sentinel", fmt.Errorf("repo x: %w", domain.ErrNotFound), http.StatusNotFound},
		{"unauthorized", &domain.UnauthorizedError{Message: "no token"}, http.StatusUnauthorized},
		{"forbidden", &domain.ForbiddenError{Message: "not yours"}, http.StatusForbidden},
		{"conflict", &domain.ConflictError{Message: "exists"}, http.StatusConflict},
		{"transient", &domain.TransientError{Message: "clone failed"}, http.StatusBadGateway},
		{"kind conflict", &repotree.KindConflictError{Path: "a/b"}, http.StatusBadRequest},
		{"empty segment", &repotree.EmptySegmentError{Path: "a//b"}, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content type = %q, want application/problem+json", ct)
			}
		})
	}
}

// A body that fails to parse must produce a 400 problem response, never
// an empty 200. The services are nil on purpose: a parse failure must
// reject before anything downstream runs.
func TestHandlers_RejectMalformedBody(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	chatH := NewChatHandler(nil, logger)
	repoH := NewRepoHandler(nil, logger)
	prefsH := NewPreferencesHandler(nil, logger)

	cases := []struct {
		name    string
		handler http.HandlerFunc
		path    map[string]string
	}{
		{"create session", chatH.CreateSession, nil},
		{"update session", chatH.UpdateSession, map[string]string{"sessionID": "sess-1"}},
		{"create message", chatH.CreateMessage, map[string]string{"sessionID": "sess-1"}},
		{"load repo", repoH.LoadRepo, nil},
		{"create file", repoH.CreateFile, map[string]string{"repoID": "repo-1"}},
		{"update preferences", prefsH.UpdatePreferences, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
			for name, value := range tc.path {
				req.SetPathValue(name, value)
			}
			rec := httptest.NewRecorder()
			tc.handler(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d (body written: %q)", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content type = %q, want application/problem+json", ct)
			}
		})
	}
}

func TestHandleError_DoesNotLeakInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, errors.New("pq: connection refused on 10.0.0.5"))

	body := rec.Body.String()
	if strings.Contains(body, "10.0.0.5") || strings.Contains(body, "pq:") {
		t.Errorf("internal error detail leaked: %s", body)
	}
}
