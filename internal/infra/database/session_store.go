package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"zkeeper/internal/domain/session"
	"zkeeper/pkg/logger"
)

// CredentialValidator valida um blob de credenciais antes de qualquer escrita
type CredentialValidator func(data []byte) error

// sessionStore implementa session.Store e session.SettingsRepository sobre bun
type sessionStore struct {
	db       *bun.DB
	validate CredentialValidator
	now      func() time.Time
	logger   logger.Logger
}

var (
	_ session.Store              = (*sessionStore)(nil)
	_ session.SettingsRepository = (*sessionStore)(nil)
)

// SessionStore agrupa as duas interfaces atendidas pelo store
type SessionStore interface {
	session.Store
	session.SettingsRepository
}

// NewSessionStore cria o store de sessões. validate é chamado em todo Save.
func NewSessionStore(db *bun.DB, validate CredentialValidator, log logger.Logger) SessionStore {
	return &sessionStore{
		db:       db,
		validate: validate,
		now:      time.Now,
		logger:   log.WithComponent("session-store"),
	}
}

// Save grava as credenciais do tenant e cria as configurações padrão na
// primeira gravação, tudo numa única transação
func (r *sessionStore) Save(ctx context.Context, tenantID string, data []byte) error {
	if err := r.validate(data); err != nil {
		return session.NewSessionError(tenantID, "save", err)
	}

	now := r.now()
	rec := &session.StoredSession{
		Number:      tenantID,
		SessionData: data,
		Status:      session.RecordActive,
		Health:      session.HealthActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastActive:  now,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(rec).
			On("CONFLICT (number) DO UPDATE").
			Set("session_data = EXCLUDED.session_data").
			Set("status = EXCLUDED.status").
			Set("health = EXCLUDED.health").
			Set("updated_at = EXCLUDED.updated_at").
			Set("last_active = EXCLUDED.last_active").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		_, err = tx.NewInsert().
			Model(session.DefaultTenantSettings(tenantID, now)).
			On("CONFLICT (number) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert default settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError(tenantID, "save", err)
	}
	return nil
}

// Load retorna as credenciais de um registro ativo
func (r *sessionStore) Load(ctx context.Context, tenantID string) ([]byte, error) {
	rec := new(session.StoredSession)
	err := r.db.NewSelect().
		Model(rec).
		Where("number = ?", tenantID).
		Where("status = ?", session.RecordActive).
		Scan(ctx)
	if err != nil {
		return nil, storeError(tenantID, "load", err)
	}
	return rec.SessionData, nil
}

// Delete marca a sessão como removida, descarta as credenciais e apaga as
// configurações do tenant. As duas escritas acontecem juntas ou nenhuma.
func (r *sessionStore) Delete(ctx context.Context, tenantID string) error {
	now := r.now()

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*session.StoredSession)(nil)).
			Set("status = ?", session.RecordDeleted).
			Set("session_data = NULL").
			Set("updated_at = ?", now).
			Where("number = ?", tenantID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark session deleted: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*session.TenantSettings)(nil)).
			Where("number = ?", tenantID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return storeError(tenantID, "delete", err)
	}

	r.logger.WithTenant(tenantID).Debug().Msg("Session record deleted")
	return nil
}

// ListActive retorna todos os registros ativos, mais antigos primeiro
func (r *sessionStore) ListActive(ctx context.Context) ([]*session.StoredSession, error) {
	var records []*session.StoredSession
	err := r.db.NewSelect().
		Model(&records).
		Where("status = ?", session.RecordActive).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeError("*", "list active", err)
	}
	return records, nil
}

// LoadSettings busca as configurações de um tenant
func (r *sessionStore) LoadSettings(ctx context.Context, tenantID string) (*session.TenantSettings, error) {
	settings := new(session.TenantSettings)
	err := r.db.NewSelect().
		Model(settings).
		Where("number = ?", tenantID).
		Scan(ctx)
	if err != nil {
		return nil, storeError(tenantID, "load settings", err)
	}
	return settings, nil
}

// SaveSettings grava (upsert) as configurações de um tenant
func (r *sessionStore) SaveSettings(ctx context.Context, settings *session.TenantSettings) error {
	now := r.now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(settings).
		On("CONFLICT (number) DO UPDATE").
		Set("auto_react = EXCLUDED.auto_react").
		Set("command_prefix = EXCLUDED.command_prefix").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return storeError(settings.Number, "save settings", err)
	}
	return nil
}

// storeError traduz erros do banco para a taxonomia de domínio. Tudo que não
// é "não encontrado" é tratado como transitório.
func storeError(tenantID, op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return session.NewSessionError(tenantID, op, session.ErrSessionNotFound)
	}
	return session.NewSessionError(tenantID, op, fmt.Errorf("%w: %w", session.ErrTransientStore, err))
}
