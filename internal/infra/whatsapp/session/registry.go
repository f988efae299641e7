package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
)

// entry é o estado em memória de um tenant. Todos os campos são protegidos
// por mu, o lock por tenant.
type entry struct {
	id string

	mu         sync.Mutex
	handle     whatsapp.Handle
	generation uint64

	createdAt       time.Time
	lastActiveAt    time.Time
	disconnectedAt  time.Time
	connectingSince time.Time

	health            session.Health
	status            session.ConnectionStatus
	reconnectAttempts int

	credentials []byte
	dirty       bool
	lastBackup  time.Time

	// paired indica que o tenant já concluiu o pareamento alguma vez
	paired bool

	markedForReconnect bool
	reconnecting       bool
	cancelReconnect    context.CancelFunc

	deleteTimer *time.Timer

	// removed é definitivo: nenhuma escrita acontece depois dele
	removed bool
}

// install troca o handle do tenant e retorna o anterior, que deve ser fechado
// pelo chamador fora do lock. Deve ser chamado com mu travado.
func (e *entry) install(h whatsapp.Handle) (prev whatsapp.Handle, gen uint64) {
	prev = e.handle
	e.handle = h
	e.generation++
	return prev, e.generation
}

// detach desvincula o handle atual sem instalar outro. Deve ser chamado com mu travado.
func (e *entry) detach() whatsapp.Handle {
	prev, _ := e.install(nil)
	return prev
}

func (e *entry) setConnecting(now time.Time) {
	e.status = session.StatusConnecting
	e.connectingSince = now
}

// info gera o snapshot público. Deve ser chamado com mu travado.
func (e *entry) info() *session.TenantInfo {
	info := &session.TenantInfo{
		TenantID:          e.id,
		Health:            e.health,
		Status:            e.status,
		CreatedAt:         e.createdAt,
		LastActiveAt:      e.lastActiveAt,
		ReconnectAttempts: e.reconnectAttempts,
		Dirty:             e.dirty,
		Reconnecting:      e.reconnecting,
	}
	if !e.disconnectedAt.IsZero() {
		t := e.disconnectedAt
		info.DisconnectedAt = &t
	}
	if !e.lastBackup.IsZero() {
		t := e.lastBackup
		info.LastBackupAt = &t
	}
	return info
}

// registry mapeia tenant -> entry. O lock estrutural só cobre inserção e
// remoção; alterações de campos usam o lock do próprio entry.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

// reserve insere um entry novo em estado connecting. Retorna o existente e
// false se o tenant já estiver registrado.
func (r *registry) reserve(id string, now time.Time) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		return e, false
	}

	e := &entry{
		id:              id,
		createdAt:       now,
		lastActiveAt:    now,
		connectingSince: now,
		health:          session.HealthActive,
		status:          session.StatusConnecting,
	}
	r.entries[id] = e
	return e, true
}

func (r *registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e, ok
}

// remove apaga o tenant apenas se o entry ainda for o informado
func (r *registry) remove(id string, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[id]; ok && current == e {
		delete(r.entries, id)
		return true
	}
	return false
}

// snapshot retorna os entries atuais ordenados por tenant
func (r *registry) snapshot() []*entry {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries
}

// listActive retorna os tenants com conexão aberta
func (r *registry) listActive() []string {
	var ids []string
	for _, e := range r.snapshot() {
		e.mu.Lock()
		if !e.removed && e.status == session.StatusOpen {
			ids = append(ids, e.id)
		}
		e.mu.Unlock()
	}
	return ids
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
