package session

import (
	"time"

	"github.com/uptrace/bun"
)

// Health é a classificação grosseira do estado de um tenant
type Health string

const (
	HealthActive       Health = "active"
	HealthDegraded     Health = "degraded"
	HealthDisconnected Health = "disconnected"
	HealthDead         Health = "dead"
)

// ConnectionStatus espelha o estado do handle do protocolo
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusOpen       ConnectionStatus = "open"
	StatusClosed     ConnectionStatus = "closed"
	StatusBanned     ConnectionStatus = "banned"
)

// RecordStatus é o status lógico de um registro persistido
type RecordStatus string

const (
	RecordActive  RecordStatus = "active"
	RecordDeleted RecordStatus = "deleted"
)

// Persistable indica se credenciais de um tenant com esta saúde podem ser gravadas
func (h Health) Persistable() bool {
	return h == HealthActive || h == HealthDegraded
}

// StoredSession representa o registro durável de uma sessão (um por número)
type StoredSession struct {
	bun.BaseModel `bun:"table:wa_sessions,alias:s"`

	Number      string       `bun:"number,pk,type:varchar(20)" json:"number"`
	SessionData []byte       `bun:"session_data,type:bytea" json:"-"`
	Status      RecordStatus `bun:"status,type:varchar(20),notnull" json:"status"`
	Health      Health       `bun:"health,type:varchar(20),notnull" json:"health"`
	CreatedAt   time.Time    `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
	UpdatedAt   time.Time    `bun:"updated_at,type:timestamptz,notnull" json:"updatedAt"`
	LastActive  time.Time    `bun:"last_active,type:timestamptz,notnull" json:"lastActive"`
}

// IsDeleted verifica se o registro foi removido logicamente
func (s *StoredSession) IsDeleted() bool {
	return s.Status == RecordDeleted
}

// TenantSettings é a configuração por tenant, removida junto com a sessão
type TenantSettings struct {
	bun.BaseModel `bun:"table:wa_tenant_settings,alias:ts"`

	Number        string    `bun:"number,pk,type:varchar(20)" json:"number"`
	AutoReact     bool      `bun:"auto_react,notnull,default:true" json:"autoReact"`
	CommandPrefix string    `bun:"command_prefix,type:varchar(4),notnull,default:'.'" json:"commandPrefix"`
	CreatedAt     time.Time `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,type:timestamptz,notnull" json:"updatedAt"`
}

// DefaultTenantSettings retorna as configurações de um tenant recém-pareado
func DefaultTenantSettings(number string, now time.Time) *TenantSettings {
	return &TenantSettings{
		Number:        number,
		AutoReact:     true,
		CommandPrefix: ".",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TenantInfo é uma fotografia somente-leitura de uma entrada do registro
type TenantInfo struct {
	TenantID          string           `json:"tenantId"`
	Health            Health           `json:"health"`
	Status            ConnectionStatus `json:"status"`
	CreatedAt         time.Time        `json:"createdAt"`
	LastActiveAt      time.Time        `json:"lastActiveAt"`
	DisconnectedAt    *time.Time       `json:"disconnectedAt,omitempty"`
	ReconnectAttempts int              `json:"reconnectAttempts"`
	LastBackupAt      *time.Time       `json:"lastBackupAt,omitempty"`
	Dirty             bool             `json:"dirty"`
	Reconnecting      bool             `json:"reconnecting"`
}

// PendingSave é um snapshot de credenciais cuja gravação falhou
type PendingSave struct {
	Data      []byte
	Timestamp time.Time
}
