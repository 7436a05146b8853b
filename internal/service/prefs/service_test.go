package prefs

import (
	"context"
	"log/slog"
	"testing"

	"repochat/internal/domain/models"
)

type fakePrefsRepo struct {
	stored map[string]*models.UserPreferences
}

func (f *fakePrefsRepo) Get(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if p, ok := f.stored[userID]; ok {
		return p, nil
	}
	return &models.UserPreferences{UserID: userID, Preferences: models.JSONMap{}}, nil
}

func (f *fakePrefsRepo) Update(ctx context.Context, prefs *models.UserPreferences) error {
	f.stored[prefs.UserID] = prefs
	return nil
}

func newTestService() (*Service, *fakePrefsRepo) {
	repo := &fakePrefsRepo{stored: make(map[string]*models.UserPreferences)}
	return NewService(repo, slog.New(slog.DiscardHandler)), repo
}

func TestGet_DefaultsForNewUser(t *testing.T) {
	svc, _ := newTestService()

	prefs, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	ui, err := prefs.GetUI()
	if err != nil {
		t.Fatalf("GetUI: %v", err)
	}
	if ui.Theme != "light" {
		t.Errorf("default theme = %q, want light", ui.Theme)
	}
}

func TestUpdate_PartialKeepsOtherNamespaces(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sessionID := "sess-1"
	_, err := svc.Update(ctx, "user-1", models.UpdatePreferencesRequest{
		Chat: &models.ChatPreferences{CurrentSessionID: &sessionID},
	})
	if err != nil {
		t.Fatalf("Update chat: %v", err)
	}

	updated, err := svc.Update(ctx, "user-1", models.UpdatePreferencesRequest{
		UI: &models.UIPreferences{Theme: "dark"},
	})
	if err != nil {
		t.Fatalf("Update ui: %v", err)
	}

	ui, err := updated.GetUI()
	if err != nil {
		t.Fatalf("GetUI: %v", err)
	}
	if ui.Theme != "dark" {
		t.Errorf("theme = %q, want dark", ui.Theme)
	}

	chat, err := updated.GetChat()
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if chat.CurrentSessionID == nil || *chat.CurrentSessionID != sessionID {
		t.Errorf("current session = %v, want %q preserved", chat.CurrentSessionID, sessionID)
	}
}

func TestUpdate_RejectsUnknownTheme(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), "user-1", models.UpdatePreferencesRequest{
		UI: &models.UIPreferences{Theme: "solarized"},
	})
	if err == nil {
		t.Fatal("expected validation error for unknown theme")
	}
}
