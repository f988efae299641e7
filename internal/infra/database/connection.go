package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"zkeeper/internal/domain/session"
	"zkeeper/pkg/logger"
)

// NewDatabase cria uma nova conexão com o banco de dados PostgreSQL
func NewDatabase(ctx context.Context, dsn string, debug bool, log logger.Logger) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	db := bun.NewDB(sqldb, pgdialect.New())

	// Habilitar logging de queries se necessário
	if debug {
		db.AddQueryHook(logger.NewBunQueryHook(log))
	}

	// Configurar pool de conexões
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(25)

	// Testar conexão
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// RunMigrations cria as tabelas de sessões e de configurações por tenant
func RunMigrations(ctx context.Context, db *bun.DB) error {
	models := []struct {
		name  string
		model interface{}
	}{
		{"wa_sessions", (*session.StoredSession)(nil)},
		{"wa_tenant_settings", (*session.TenantSettings)(nil)},
	}

	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m.model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", m.name, err)
		}
	}

	// A restauração filtra por status a cada ciclo
	_, err := db.NewCreateIndex().
		Model((*session.StoredSession)(nil)).
		Index("wa_sessions_status_idx").
		Column("status").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create wa_sessions status index: %w", err)
	}

	return nil
}
