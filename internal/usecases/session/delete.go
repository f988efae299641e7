package session

import (
	"context"
	"errors"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// DeleteSessionUseCase implementa o caso de uso para remover uma sessão
type DeleteSessionUseCase struct {
	manager whatsapp.SessionManager
	pairing whatsapp.PairingCodeManager
	logger  logger.Logger
}

// NewDeleteSessionUseCase cria uma nova instância do caso de uso
func NewDeleteSessionUseCase(
	manager whatsapp.SessionManager,
	pairing whatsapp.PairingCodeManager,
	logger logger.Logger,
) *DeleteSessionUseCase {
	return &DeleteSessionUseCase{
		manager: manager,
		pairing: pairing,
		logger:  logger.WithComponent("delete-session-usecase"),
	}
}

// Execute derruba a sessão e apaga o registro durável
func (uc *DeleteSessionUseCase) Execute(ctx context.Context, number string) error {
	uc.logger.WithField("number", number).Info().Msg("Deleting session")

	if err := uc.manager.RequestRemoval(ctx, number); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			uc.logger.WithField("number", number).Warn().Msg("Session not found")
			return err
		}
		// A exclusão no store fica pendente e é refeita pelo supervisor
		if session.IsTransient(err) {
			uc.logger.WithError(err).Warn().Msg("Session removed, store delete deferred")
			uc.clearPairing(number)
			return nil
		}
		uc.logger.WithError(err).Error().Msg("Failed to delete session")
		return err
	}

	uc.clearPairing(number)
	uc.logger.WithField("number", number).Info().Msg("Session deleted successfully")
	return nil
}

func (uc *DeleteSessionUseCase) clearPairing(number string) {
	if uc.pairing == nil {
		return
	}
	if id, err := session.NormalizeTenantID(number); err == nil {
		uc.pairing.Clear(id)
	}
}
