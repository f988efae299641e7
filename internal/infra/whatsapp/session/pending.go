package session

import (
	"sort"
	"sync"
	"time"

	"zkeeper/internal/domain/session"
)

// pendingBuffer guarda gravações que falharam no store e exclusões ainda não
// confirmadas. Há no máximo uma gravação pendente por tenant; a mais nova vence.
type pendingBuffer struct {
	mu      sync.Mutex
	saves   map[string]session.PendingSave
	deletes map[string]time.Time
}

func newPendingBuffer() *pendingBuffer {
	return &pendingBuffer{
		saves:   make(map[string]session.PendingSave),
		deletes: make(map[string]time.Time),
	}
}

// Add registra (ou sobrescreve) a gravação pendente de um tenant
func (p *pendingBuffer) Add(id string, data []byte, ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.saves[id] = session.PendingSave{Data: data, Timestamp: ts}
}

// Get retorna a gravação pendente de um tenant
func (p *pendingBuffer) Get(id string) (session.PendingSave, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ps, ok := p.saves[id]
	return ps, ok
}

// Remove descarta a gravação pendente de um tenant
func (p *pendingBuffer) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.saves, id)
}

// RemoveIfUnchanged descarta a gravação apenas se ela não foi substituída
// por uma mais nova desde ts
func (p *pendingBuffer) RemoveIfUnchanged(id string, ts time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ps, ok := p.saves[id]; ok && ps.Timestamp.Equal(ts) {
		delete(p.saves, id)
		return true
	}
	return false
}

// Snapshot retorna os tenants com gravação pendente, ordenados
func (p *pendingBuffer) Snapshot() []string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.saves))
	for id := range p.saves {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len retorna o número de gravações pendentes
func (p *pendingBuffer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saves)
}

// MarkDelete registra uma exclusão que falhou no store
func (p *pendingBuffer) MarkDelete(id string, ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.saves, id)
	p.deletes[id] = ts
}

// CancelDelete esquece a exclusão pendente (o tenant foi pareado de novo)
func (p *pendingBuffer) CancelDelete(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.deletes, id)
}

// IsDeleting informa se há exclusão pendente para o tenant
func (p *pendingBuffer) IsDeleting(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.deletes[id]
	return ok
}

// Deletes retorna os tenants com exclusão pendente, ordenados
func (p *pendingBuffer) Deletes() []string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.deletes))
	for id := range p.deletes {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	sort.Strings(ids)
	return ids
}
