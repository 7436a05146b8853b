// Package prefs manages per-user settings: UI theme and chat defaults.
package prefs

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"repochat/internal/domain"
	"repochat/internal/domain/models"
	"repochat/internal/domain/repositories"
)

// Service reads and updates user preferences.
type Service struct {
	prefs  repositories.UserPreferencesRepository
	logger *slog.Logger
}

// NewService creates the preferences service.
func NewService(prefs repositories.UserPreferencesRepository, logger *slog.Logger) *Service {
	return &Service{prefs: prefs, logger: logger}
}

// Get returns the user's preferences, defaults included.
func (s *Service) Get(ctx context.Context, userID string) (*models.UserPreferences, error) {
	return s.prefs.Get(ctx, userID)
}

// Update applies a partial update: only the namespaces present in the
// request are replaced, the rest keep their stored values.
func (s *Service) Update(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (*models.UserPreferences, error) {
	if err := validateUpdate(req); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	current, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.UI != nil {
		if err := current.SetUI(req.UI); err != nil {
			return nil, err
		}
	}
	if req.Chat != nil {
		if err := current.SetChat(req.Chat); err != nil {
			return nil, err
		}
	}

	if err := s.prefs.Update(ctx, current); err != nil {
		return nil, err
	}

	s.logger.Debug("preferences updated", "user_id", userID)
	return current, nil
}

func validateUpdate(req models.UpdatePreferencesRequest) error {
	if req.UI != nil {
		err := validation.Validate(req.UI.Theme,
			validation.Required,
			validation.In("light", "dark", "auto"))
		if err != nil {
			return err
		}
	}
	return nil
}
