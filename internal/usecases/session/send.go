package session

import (
	"context"

	"github.com/go-playground/validator/v10"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// SendTextUseCase envia uma mensagem de texto pela sessão de um tenant
type SendTextUseCase struct {
	manager   whatsapp.SessionManager
	validator *validator.Validate
	logger    logger.Logger
}

// NewSendTextUseCase cria uma nova instância do caso de uso
func NewSendTextUseCase(
	manager whatsapp.SessionManager,
	logger logger.Logger,
) *SendTextUseCase {
	return &SendTextUseCase{
		manager:   manager,
		validator: validator.New(),
		logger:    logger.WithComponent("send-text-usecase"),
	}
}

// SendTextRequest representa os dados de envio
type SendTextRequest struct {
	To      string `json:"to" validate:"required,min=7,max=40"`
	Message string `json:"message" validate:"required,max=4096"`
}

// SendTextResponse representa a resposta do envio
type SendTextResponse struct {
	To     string `json:"to"`
	Status string `json:"status"`
}

// Execute valida a requisição e envia a mensagem se a sessão estiver aberta
func (uc *SendTextUseCase) Execute(ctx context.Context, number string, req SendTextRequest) (*SendTextResponse, error) {
	if err := uc.validator.Struct(req); err != nil {
		uc.logger.WithError(err).Warn().Msg("Invalid send request")
		return nil, session.NewValidationError("request", req.To, err.Error())
	}

	to, err := session.NormalizeTenantID(req.To)
	if err != nil {
		return nil, err
	}

	handle, err := uc.manager.GetActiveHandle(number)
	if err != nil {
		uc.logger.WithError(err).Warn().Str("number", number).Msg("Session not available for sending")
		return nil, err
	}

	if err := handle.Send(ctx, to, req.Message); err != nil {
		uc.logger.WithError(err).Error().Msg("Failed to send text message")
		return nil, err
	}

	uc.logger.WithFields(map[string]interface{}{
		"number": number,
		"to":     to,
	}).Info().Msg("Text message sent successfully")

	return &SendTextResponse{To: to, Status: "sent"}, nil
}
