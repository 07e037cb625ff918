package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ArticlesRewriter/internal/apperr"
	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

// SettingsService owns the generative-API credential. A successful write is
// the only transition that closes the breaker.
type SettingsService struct {
	repo     ports.ConfigRepository
	breaker  *Breaker
	defaults domain.AppConfig
	logger   *slog.Logger
}

// NewSettingsService falls back to defaults for fields never saved to the store.
func NewSettingsService(repo ports.ConfigRepository, breaker *Breaker, defaults domain.AppConfig, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SettingsService{repo: repo, breaker: breaker, defaults: defaults, logger: logger}
}

// Current returns the credential a run should use.
func (s *SettingsService) Current(ctx context.Context) (domain.AppConfig, error) {
	stored, err := s.repo.GetAppConfig(ctx)
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("load app config: %w", err)
	}
	if stored.GenerativeAPIKey == "" {
		stored.GenerativeAPIKey = s.defaults.GenerativeAPIKey
	}
	if stored.GenerativeModel == "" {
		stored.GenerativeModel = s.defaults.GenerativeModel
	}
	return stored, nil
}

// Update stores a new credential and model, then resets the breaker.
func (s *SettingsService) Update(ctx context.Context, apiKey, model string) (domain.AppConfig, error) {
	apiKey, model = strings.TrimSpace(apiKey), strings.TrimSpace(model)
	if apiKey == "" || model == "" {
		return domain.AppConfig{}, apperr.NewValidation("apiKey and model are required")
	}

	saved, err := s.repo.SaveAppConfig(ctx, domain.AppConfig{GenerativeAPIKey: apiKey, GenerativeModel: model})
	if err != nil {
		return domain.AppConfig{}, fmt.Errorf("save app config: %w", err)
	}

	if s.breaker != nil && s.breaker.IsOpen() {
		s.breaker.Reset()
		s.logger.Info("breaker reset by config update", "version", saved.Version)
	}
	return saved, nil
}
