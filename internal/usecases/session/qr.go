package session

import (
	"context"
	"errors"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// GetQRCodeUseCase implementa o caso de uso para obter os códigos de pareamento
type GetQRCodeUseCase struct {
	manager whatsapp.SessionManager
	pairing whatsapp.PairingCodeManager
	logger  logger.Logger
}

// NewGetQRCodeUseCase cria uma nova instância do caso de uso
func NewGetQRCodeUseCase(
	manager whatsapp.SessionManager,
	pairing whatsapp.PairingCodeManager,
	logger logger.Logger,
) *GetQRCodeUseCase {
	return &GetQRCodeUseCase{
		manager: manager,
		pairing: pairing,
		logger:  logger.WithComponent("get-qr-usecase"),
	}
}

// QRCodeResponse representa a resposta do QR code
type QRCodeResponse struct {
	QRCode   string                   `json:"qrCode,omitempty"`
	PairCode string                   `json:"pairCode,omitempty"`
	Status   session.ConnectionStatus `json:"status"`
}

// Execute retorna os códigos vigentes de um tenant em pareamento
func (uc *GetQRCodeUseCase) Execute(ctx context.Context, number string) (*QRCodeResponse, error) {
	info, err := uc.manager.GetHealth(number)
	if err != nil {
		return nil, err
	}

	// Se já estiver conectada, não precisa de QR code
	if info.Status == session.StatusOpen {
		return &QRCodeResponse{Status: info.Status}, nil
	}

	qrCode, qrErr := uc.pairing.GetQRCode(info.TenantID)
	pairCode, pairErr := uc.pairing.GetPairCode(info.TenantID)
	if qrErr != nil && pairErr != nil {
		if errors.Is(qrErr, session.ErrSessionNotFound) {
			uc.logger.WithField("tenantId", info.TenantID).Debug().Msg("No pairing code available")
		}
		return nil, session.NewSessionError(info.TenantID, "qr", session.ErrSessionNotFound)
	}

	uc.logger.WithFields(map[string]interface{}{
		"tenantId":    info.TenantID,
		"hasQRCode":   qrCode != "",
		"hasPairCode": pairCode != "",
	}).Debug().Msg("Pairing codes retrieved")

	return &QRCodeResponse{
		QRCode:   qrCode,
		PairCode: pairCode,
		Status:   info.Status,
	}, nil
}
