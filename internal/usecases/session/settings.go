package session

import (
	"context"

	"github.com/go-playground/validator/v10"

	"zkeeper/internal/domain/session"
	"zkeeper/pkg/logger"
)

// SettingsUseCase lê e altera as configurações por tenant
type SettingsUseCase struct {
	repo      session.SettingsRepository
	validator *validator.Validate
	logger    logger.Logger
}

// NewSettingsUseCase cria uma nova instância do caso de uso
func NewSettingsUseCase(
	repo session.SettingsRepository,
	logger logger.Logger,
) *SettingsUseCase {
	return &SettingsUseCase{
		repo:      repo,
		validator: validator.New(),
		logger:    logger.WithComponent("settings-usecase"),
	}
}

// UpdateSettingsRequest representa a alteração das configurações
type UpdateSettingsRequest struct {
	AutoReact     *bool  `json:"autoReact" validate:"required"`
	CommandPrefix string `json:"commandPrefix" validate:"required,max=4"`
}

// Get retorna as configurações de um tenant
func (uc *SettingsUseCase) Get(ctx context.Context, number string) (*session.TenantSettings, error) {
	id, err := session.NormalizeTenantID(number)
	if err != nil {
		return nil, err
	}
	return uc.repo.LoadSettings(ctx, id)
}

// Update altera as configurações de um tenant já pareado
func (uc *SettingsUseCase) Update(ctx context.Context, number string, req UpdateSettingsRequest) (*session.TenantSettings, error) {
	if err := uc.validator.Struct(req); err != nil {
		return nil, session.NewValidationError("request", number, err.Error())
	}

	settings, err := uc.Get(ctx, number)
	if err != nil {
		return nil, err
	}

	settings.AutoReact = *req.AutoReact
	settings.CommandPrefix = req.CommandPrefix

	if err := uc.repo.SaveSettings(ctx, settings); err != nil {
		uc.logger.WithError(err).Error().Str("tenantId", settings.Number).Msg("Failed to save settings")
		return nil, err
	}

	logger.LogTenantEvent(uc.logger, "settings_updated", settings.Number, map[string]interface{}{
		"autoReact":     settings.AutoReact,
		"commandPrefix": settings.CommandPrefix,
	})
	return settings, nil
}
