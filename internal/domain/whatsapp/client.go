package whatsapp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"zkeeper/internal/domain/session"
)

// Handle representa uma conexão viva com o protocolo para um único tenant.
// Os eventos chegam em ordem pelo canal retornado por Events, que é fechado
// depois de Close.
type Handle interface {
	// Events retorna o fluxo de eventos de ciclo de vida da conexão
	Events() <-chan Event

	// Send envia uma mensagem de texto para o número informado
	Send(ctx context.Context, to, text string) error

	// Pair solicita o código de pareamento de uma sessão nova
	Pair(ctx context.Context) (string, error)

	// Close encerra a conexão; chamadas repetidas são ignoradas
	Close()
}

// Factory cria handles de protocolo.
//
// Create com creds nil inicia um pareamento novo; com creds não vazias
// reconstrói a sessão a partir das credenciais conhecidas. Falhas retornam
// session.ErrProtocolConnectFailure ou session.ErrPermanentBan.
type Factory interface {
	Create(ctx context.Context, tenantID string, creds []byte) (Handle, error)

	// ValidateCredentials rejeita blobs que não podem ser restaurados
	ValidateCredentials(blob []byte) error
}

// PairingToken é devolvido ao solicitar uma sessão nova
type PairingToken struct {
	Token     uuid.UUID `json:"token"`
	TenantID  string    `json:"tenantId"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionManager é a superfície consumida pela camada de comandos
type SessionManager interface {
	// GetActiveHandle retorna o handle apenas se a conexão estiver aberta
	GetActiveHandle(tenantID string) (Handle, error)

	// RequestNewSession inicia o pareamento de um tenant
	RequestNewSession(ctx context.Context, tenantID string) (*PairingToken, error)

	// RequestRemoval derruba a sessão e apaga o registro durável
	RequestRemoval(ctx context.Context, tenantID string) error

	// GetHealth retorna um snapshot do tenant
	GetHealth(tenantID string) (*session.TenantInfo, error)

	// List retorna snapshots de todos os tenants registrados
	List() []*session.TenantInfo
}
