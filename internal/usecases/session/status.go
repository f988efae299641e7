package session

import (
	"context"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// GetHealthUseCase implementa o caso de uso para obter a saúde de uma sessão
type GetHealthUseCase struct {
	manager whatsapp.SessionManager
	logger  logger.Logger
}

// NewGetHealthUseCase cria uma nova instância do caso de uso
func NewGetHealthUseCase(
	manager whatsapp.SessionManager,
	logger logger.Logger,
) *GetHealthUseCase {
	return &GetHealthUseCase{
		manager: manager,
		logger:  logger.WithComponent("get-health-usecase"),
	}
}

// Execute retorna o snapshot atual do tenant
func (uc *GetHealthUseCase) Execute(ctx context.Context, number string) (*session.TenantInfo, error) {
	info, err := uc.manager.GetHealth(number)
	if err != nil {
		uc.logger.WithError(err).Debug().Str("number", number).Msg("Health lookup failed")
		return nil, err
	}
	return info, nil
}
