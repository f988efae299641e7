package session

import (
	"context"

	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// PairPhoneUseCase implementa o caso de uso para parear um número novo
type PairPhoneUseCase struct {
	manager whatsapp.SessionManager
	logger  logger.Logger
}

// NewPairPhoneUseCase cria uma nova instância do caso de uso
func NewPairPhoneUseCase(
	manager whatsapp.SessionManager,
	logger logger.Logger,
) *PairPhoneUseCase {
	return &PairPhoneUseCase{
		manager: manager,
		logger:  logger.WithComponent("pair-phone-usecase"),
	}
}

// Execute inicia o pareamento e retorna o código a ser digitado no aparelho
func (uc *PairPhoneUseCase) Execute(ctx context.Context, number string) (*whatsapp.PairingToken, error) {
	uc.logger.WithField("number", number).Info().Msg("Initiating phone pairing")

	token, err := uc.manager.RequestNewSession(ctx, number)
	if err != nil {
		uc.logger.WithError(err).Error().Msg("Failed to pair phone")
		return nil, err
	}

	uc.logger.WithFields(map[string]interface{}{
		"tenantId":  token.TenantID,
		"expiresAt": token.ExpiresAt,
	}).Info().Msg("Phone pairing initiated successfully")

	return token, nil
}
