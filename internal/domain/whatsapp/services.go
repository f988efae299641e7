package whatsapp

import "time"

// PairingCodeManager guarda os códigos de pareamento (QR e código de telefone) por tenant
type PairingCodeManager interface {
	// SetQRCode registra o QR code mais recente de um tenant
	SetQRCode(tenantID, code string, timeout time.Duration)

	// SetPairCode registra o código de pareamento por telefone
	SetPairCode(tenantID, code string, timeout time.Duration)

	// GetQRCode retorna o QR code atual de um tenant
	GetQRCode(tenantID string) (string, error)

	// GetPairCode retorna o código de pareamento atual de um tenant
	GetPairCode(tenantID string) (string, error)

	// Clear remove os códigos de um tenant
	Clear(tenantID string)
}
