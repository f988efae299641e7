package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zkeeper/internal/app/config"
	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

func validBlob(id string) []byte {
	return []byte(fmt.Sprintf(`{"jid":"%s@s.whatsapp.net"}`, id))
}

func fakeValidate(blob []byte) error {
	var v struct {
		JID string `json:"jid"`
	}
	if len(blob) == 0 || json.Unmarshal(blob, &v) != nil || v.JID == "" {
		return fmt.Errorf("%w: bad blob", session.ErrInvalidCredentialData)
	}
	return nil
}

// ---------------------------------------------------------------------------
// store
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*session.StoredSession
	saveErr   error
	loadErr   error
	deleteErr error
	listErr   error
	saves     int
	deletes   int

	// saveHook roda dentro de Save antes da escrita
	saveHook func(id string)
	// listHook roda depois que ListActive montou o resultado
	listHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*session.StoredSession)}
}

func (f *fakeStore) Save(ctx context.Context, id string, data []byte) error {
	if err := fakeValidate(data); err != nil {
		return err
	}

	f.mu.Lock()
	hook := f.saveHook
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++

	now := time.Now()
	rec, ok := f.records[id]
	if !ok {
		rec = &session.StoredSession{Number: id, CreatedAt: now}
		f.records[id] = rec
	}
	rec.SessionData = append([]byte(nil), data...)
	rec.Status = session.RecordActive
	rec.Health = session.HealthActive
	rec.UpdatedAt = now
	rec.LastActive = now
	return nil
}

func (f *fakeStore) Load(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadErr != nil {
		return nil, f.loadErr
	}
	rec, ok := f.records[id]
	if !ok || rec.IsDeleted() {
		return nil, session.ErrSessionNotFound
	}
	return rec.SessionData, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes++
	if rec, ok := f.records[id]; ok {
		rec.Status = session.RecordDeleted
		rec.SessionData = nil
	}
	return nil
}

func (f *fakeStore) ListActive(ctx context.Context) ([]*session.StoredSession, error) {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	var out []*session.StoredSession
	for _, rec := range f.records {
		if !rec.IsDeleted() {
			cp := *rec
			out = append(out, &cp)
		}
	}
	hook := f.listHook
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) setListHook(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHook = hook
}

func (f *fakeStore) setLoadErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr = err
}

func (f *fakeStore) setDeleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

func (f *fakeStore) put(id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = &session.StoredSession{
		Number:      id,
		SessionData: data,
		Status:      session.RecordActive,
		Health:      session.HealthActive,
	}
}

func (f *fakeStore) record(id string) (*session.StoredSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

func (f *fakeStore) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeStore) setSaveHook(hook func(id string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveHook = hook
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

// ---------------------------------------------------------------------------
// factory e handle
// ---------------------------------------------------------------------------

type fakeFactory struct {
	mu      sync.Mutex
	handles []*fakeHandle
	calls   map[string]int
	creds   map[string][]byte

	// createFn, se definido, decide o resultado de Create
	createFn func(ctx context.Context, id string, creds []byte) error
	pairErr  error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		calls: make(map[string]int),
		creds: make(map[string][]byte),
	}
}

func (f *fakeFactory) Create(ctx context.Context, id string, creds []byte) (whatsapp.Handle, error) {
	f.mu.Lock()
	f.calls[id]++
	f.creds[id] = creds
	fn := f.createFn
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, id, creds); err != nil {
			return nil, err
		}
	}

	h := &fakeHandle{
		id:      id,
		events:  make(chan whatsapp.Event, 16),
		pairErr: f.pairErrValue(),
	}

	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h, nil
}

func (f *fakeFactory) ValidateCredentials(blob []byte) error {
	return fakeValidate(blob)
}

func (f *fakeFactory) setCreateFn(fn func(ctx context.Context, id string, creds []byte) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFn = fn
}

func (f *fakeFactory) pairErrValue() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairErr
}

func (f *fakeFactory) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeFactory) lastCreds(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creds[id]
}

// last retorna o handle mais recente criado para o tenant
func (f *fakeFactory) last(id string) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.handles) - 1; i >= 0; i-- {
		if f.handles[i].id == id {
			return f.handles[i]
		}
	}
	return nil
}

// liveHandles conta handles não fechados por tenant
func (f *fakeFactory) liveHandles() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := make(map[string]int)
	for _, h := range f.handles {
		if !h.isClosed() {
			live[h.id]++
		}
	}
	return live
}

type fakeHandle struct {
	id      string
	events  chan whatsapp.Event
	pairErr error

	mu     sync.Mutex
	closed bool
	sent   []string
}

func (h *fakeHandle) Events() <-chan whatsapp.Event { return h.events }

func (h *fakeHandle) Send(ctx context.Context, to, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, to+":"+text)
	return nil
}

func (h *fakeHandle) Pair(ctx context.Context) (string, error) {
	if h.pairErr != nil {
		return "", h.pairErr
	}
	return "ABCD-1234", nil
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) emit(ev whatsapp.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.events <- ev
	}
}

// ---------------------------------------------------------------------------
// relógio e supervisor de teste
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.SessionConfig {
	cfg := config.DefaultSessionConfig()
	cfg.ImmediateDeleteDelay = 10 * time.Millisecond
	cfg.StoreTimeout = time.Second
	cfg.ConnectTimeout = time.Second
	return cfg
}

type harness struct {
	sup     *Supervisor
	store   *fakeStore
	factory *fakeFactory
	clock   *fakeClock
}

func newHarness(t *testing.T, cfg config.SessionConfig) *harness {
	t.Helper()

	h := &harness{
		store:   newFakeStore(),
		factory: newFakeFactory(),
		clock:   newFakeClock(),
	}
	h.sup = NewSupervisor(h.store, h.factory, cfg, NewMetrics(), logger.NewNop())
	h.sup.now = h.clock.Now

	t.Cleanup(func() { _ = h.sup.Close() })
	return h
}

// info retorna o snapshot do tenant ou nil
func (h *harness) info(id string) *session.TenantInfo {
	info, err := h.sup.GetHealth(id)
	if err != nil {
		return nil
	}
	return info
}

func (h *harness) waitFor(t *testing.T, id string, cond func(*session.TenantInfo) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		info := h.info(id)
		return info != nil && cond(info)
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) waitGone(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.info(id) == nil
	}, 2*time.Second, 5*time.Millisecond)
}

// openTenant pareia um tenant e o leva até connected com credenciais sujas
func (h *harness) openTenant(t *testing.T, id string) *fakeHandle {
	t.Helper()

	_, err := h.sup.RequestNewSession(context.Background(), id)
	require.NoError(t, err)

	handle := h.factory.last(id)
	require.NotNil(t, handle)

	handle.emit(whatsapp.CredentialsUpdated(validBlob(id)))
	handle.emit(whatsapp.Connected())

	h.waitFor(t, id, func(info *session.TenantInfo) bool {
		return info.Status == session.StatusOpen && info.Dirty
	})
	return handle
}
