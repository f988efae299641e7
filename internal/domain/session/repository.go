package session

import (
	"context"
)

// Store define o armazenamento durável de sessões, chaveado pelo número do tenant
type Store interface {
	// Save grava (upsert) as credenciais do tenant. Rejeita dados inválidos antes de qualquer escrita.
	Save(ctx context.Context, tenantID string, data []byte) error

	// Load retorna as credenciais de um registro ativo. Registros deletados nunca são retornados.
	Load(ctx context.Context, tenantID string) ([]byte, error)

	// Delete remove logicamente a sessão e apaga as configurações do tenant (ambos ou nenhum)
	Delete(ctx context.Context, tenantID string) error

	// ListActive retorna todos os registros com status ativo
	ListActive(ctx context.Context) ([]*StoredSession, error)
}

// SettingsRepository define acesso às configurações por tenant
type SettingsRepository interface {
	LoadSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
	SaveSettings(ctx context.Context, settings *TenantSettings) error
}
