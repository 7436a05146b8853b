package repositories

import (
	"context"

	"repochat/internal/domain/models"
)

// UserPreferencesRepository persists per-user settings.
type UserPreferencesRepository interface {
	// Get returns the user's preferences, creating a default row on first
	// access so callers never see ErrNotFound.
	Get(ctx context.Context, userID string) (*models.UserPreferences, error)

	// Update replaces the preferences JSONB for the user.
	Update(ctx context.Context, prefs *models.UserPreferences) error
}
