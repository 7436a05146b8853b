package models

import (
	"encoding/json"
	"time"
)

// JSONMap is a type alias for JSONB columns
type JSONMap map[string]interface{}

// UserPreferences holds user-specific settings. Everything lives in a single
// namespaced JSONB column so new namespaces don't need schema changes.
// This replaces what the frontend used to keep as ambient globals (current
// theme, last active session) with explicitly owned persisted state.
type UserPreferences struct {
	UserID      string    `json:"user_id" db:"user_id"`
	Preferences JSONMap   `json:"preferences" db:"preferences"` // Namespaced: {ui, chat}
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UIPreferences is the ui namespace.
type UIPreferences struct {
	Theme string `json:"theme"` // "light", "dark", "auto"
}

// ChatPreferences is the chat namespace.
type ChatPreferences struct {
	CurrentSessionID *string `json:"current_session_id"`
	DefaultModel     *string `json:"default_model"`
}

// GetUI extracts the ui namespace from preferences.
func (up *UserPreferences) GetUI() (*UIPreferences, error) {
	ui := &UIPreferences{Theme: "light"}
	if err := up.namespace("ui", ui); err != nil {
		return nil, err
	}
	return ui, nil
}

// SetUI sets the ui namespace in preferences.
func (up *UserPreferences) SetUI(ui *UIPreferences) error {
	return up.setNamespace("ui", ui)
}

// GetChat extracts the chat namespace from preferences.
func (up *UserPreferences) GetChat() (*ChatPreferences, error) {
	chat := &ChatPreferences{}
	if err := up.namespace("chat", chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// SetChat sets the chat namespace in preferences.
func (up *UserPreferences) SetChat(chat *ChatPreferences) error {
	return up.setNamespace("chat", chat)
}

// namespace decodes one namespace into dest, leaving dest's defaults in
// place when the namespace is absent.
func (up *UserPreferences) namespace(key string, dest interface{}) error {
	if up.Preferences == nil {
		return nil
	}
	raw, ok := up.Preferences[key]
	if !ok {
		return nil
	}
	// Re-marshal to ensure type safety
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (up *UserPreferences) setNamespace(key string, value interface{}) error {
	if up.Preferences == nil {
		up.Preferences = JSONMap{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(data, &asMap); err != nil {
		return err
	}
	up.Preferences[key] = asMap
	return nil
}

// UpdatePreferencesRequest supports partial updates via pointers - only
// provided namespaces are replaced.
type UpdatePreferencesRequest struct {
	UI   *UIPreferences   `json:"ui"`
	Chat *ChatPreferences `json:"chat"`
}
