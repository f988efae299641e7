package session

import (
	"context"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// ListSessionsUseCase implementa o caso de uso para listar sessões
type ListSessionsUseCase struct {
	manager whatsapp.SessionManager
	logger  logger.Logger
}

// NewListSessionsUseCase cria uma nova instância do caso de uso
func NewListSessionsUseCase(
	manager whatsapp.SessionManager,
	logger logger.Logger,
) *ListSessionsUseCase {
	return &ListSessionsUseCase{
		manager: manager,
		logger:  logger.WithComponent("list-sessions-usecase"),
	}
}

// ListSessionsResponse agrupa os snapshots por saúde
type ListSessionsResponse struct {
	Sessions []*session.TenantInfo `json:"sessions"`
	Total    int                   `json:"total"`
	ByHealth map[string]int        `json:"byHealth"`
}

// Execute executa o caso de uso para listar sessões
func (uc *ListSessionsUseCase) Execute(ctx context.Context) (*ListSessionsResponse, error) {
	infos := uc.manager.List()

	byHealth := make(map[string]int)
	for _, info := range infos {
		byHealth[string(info.Health)]++
	}

	uc.logger.WithField("count", len(infos)).Debug().Msg("Sessions listed successfully")

	return &ListSessionsResponse{
		Sessions: infos,
		Total:    len(infos),
		ByHealth: byHealth,
	}, nil
}
