package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"zkeeper/internal/domain/session"
	"zkeeper/pkg/logger"
)

func rejectAll(data []byte) error {
	return fmt.Errorf("%w: rejected", session.ErrInvalidCredentialData)
}

func TestSaveRejectsInvalidCredentialsBeforeIO(t *testing.T) {
	// Sem banco: qualquer acesso ao db entraria em panic
	store := NewSessionStore(nil, rejectAll, logger.NewNop())

	err := store.Save(context.Background(), "254700000001", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrInvalidCredentialData)
	assert.False(t, session.IsTransient(err))

	var sessErr *session.SessionError
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, "254700000001", sessErr.TenantID)
	assert.Equal(t, "save", sessErr.Op)
}

func TestStoreErrorClassification(t *testing.T) {
	notFound := storeError("254700000001", "load", fmt.Errorf("scan: %w", sql.ErrNoRows))
	assert.ErrorIs(t, notFound, session.ErrSessionNotFound)
	assert.False(t, session.IsTransient(notFound))

	cause := errors.New("dial tcp: connection refused")
	transient := storeError("254700000001", "save", cause)
	assert.ErrorIs(t, transient, session.ErrTransientStore)
	assert.ErrorIs(t, transient, cause)
	assert.True(t, session.IsTransient(transient))

	deadline := storeError("254700000001", "delete", context.DeadlineExceeded)
	assert.True(t, session.IsTransient(deadline))
}

// queryCounter conta as queries que passam pelo bun
type queryCounter struct {
	mu      sync.Mutex
	queries []string
}

func (c *queryCounter) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (c *queryCounter) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, event.Query)
}

func (c *queryCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}

func acceptJSON(data []byte) error {
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("%w: not a json object", session.ErrInvalidCredentialData)
	}
	return nil
}

// newTestDB abre um sqlite em memória com as tabelas já criadas
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func newTestStore(t *testing.T) (*sessionStore, *bun.DB) {
	db := newTestDB(t)
	store := NewSessionStore(db, acceptJSON, logger.NewNop()).(*sessionStore)
	store.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	return store, db
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := "254700000001"

	require.NoError(t, store.Save(ctx, id, []byte(`{"jid":"a"}`)))
	require.NoError(t, store.Save(ctx, id, []byte(`{"jid":"b"}`)))

	data, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"jid":"b"}`), data)

	// Configurações padrão criadas na primeira gravação e preservadas no upsert
	settings, err := store.LoadSettings(ctx, id)
	require.NoError(t, err)
	assert.True(t, settings.AutoReact)
	assert.Equal(t, ".", settings.CommandPrefix)

	records, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].Number)
	assert.Equal(t, session.RecordActive, records[0].Status)
}

func TestSaveRejectedBlobWritesNothing(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	counter := &queryCounter{}
	db.AddQueryHook(counter)

	err := store.Save(ctx, "254700000001", []byte("garbage"))
	assert.ErrorIs(t, err, session.ErrInvalidCredentialData)
	assert.Zero(t, counter.count())

	_, err = store.Load(ctx, "254700000001")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	n, err := db.NewSelect().Model((*session.TenantSettings)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteExcludesRecordAndRemovesSettings(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	id := "254700000001"

	require.NoError(t, store.Save(ctx, id, []byte(`{"jid":"a"}`)))
	require.NoError(t, store.Save(ctx, "254700000002", []byte(`{"jid":"b"}`)))
	require.NoError(t, store.Delete(ctx, id))

	_, err := store.Load(ctx, id)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = store.LoadSettings(ctx, id)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	// O registro continua na tabela, marcado e sem credenciais
	rec := new(session.StoredSession)
	require.NoError(t, db.NewSelect().Model(rec).Where("number = ?", id).Scan(ctx))
	assert.Equal(t, session.RecordDeleted, rec.Status)
	assert.Nil(t, rec.SessionData)

	records, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "254700000002", records[0].Number)

	// Nova gravação reativa o número
	require.NoError(t, store.Save(ctx, id, []byte(`{"jid":"c"}`)))
	data, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"jid":"c"}`), data)
}

func TestDeleteRollsBackWhenSettingsDeleteFails(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	id := "254700000001"

	require.NoError(t, store.Save(ctx, id, []byte(`{"jid":"a"}`)))

	_, err := db.NewDropTable().Model((*session.TenantSettings)(nil)).Exec(ctx)
	require.NoError(t, err)

	err = store.Delete(ctx, id)
	require.Error(t, err)
	assert.True(t, session.IsTransient(err))

	// A marcação de removido foi desfeita junto
	data, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"jid":"a"}`), data)
}

func TestSaveSettingsUpsert(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	id := "254700000001"

	require.NoError(t, store.Save(ctx, id, []byte(`{"jid":"a"}`)))

	settings, err := store.LoadSettings(ctx, id)
	require.NoError(t, err)
	settings.AutoReact = false
	settings.CommandPrefix = "!"
	require.NoError(t, store.SaveSettings(ctx, settings))

	got, err := store.LoadSettings(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.AutoReact)
	assert.Equal(t, "!", got.CommandPrefix)
}
