package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"zkeeper/internal/app/config"
	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/pkg/logger"
)

// Motivos de teardown usados em logs e métricas
const (
	reasonRemoval        = "removal"
	reasonBanned         = "banned"
	reasonPairingFailed  = "pairing_failed"
	reasonPairingTimeout = "pairing_timeout"
	reasonMaxAge         = "max_age"
	reasonRetryCap       = "retry_cap"
	reasonDead           = "dead"
	reasonRestoreFailed  = "restore_failed"
)

// Supervisor é dono do ciclo de vida de todos os tenants do processo:
// registro em memória, buffer de gravações pendentes e os cinco loops
// periódicos (persistência, limpeza, reconexão, restauração e sincronização).
type Supervisor struct {
	store   session.Store
	factory whatsapp.Factory
	cfg     config.SessionConfig
	metrics *Metrics
	logger  logger.Logger

	registry *registry
	pending  *pendingBuffer

	// now permite controlar o relógio nos testes
	now func() time.Time

	guards map[string]*atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
}

var _ whatsapp.SessionManager = (*Supervisor)(nil)

// NewSupervisor cria um supervisor parado; Start inicia os loops
func NewSupervisor(store session.Store, factory whatsapp.Factory, cfg config.SessionConfig, metrics *Metrics, log logger.Logger) *Supervisor {
	if metrics == nil {
		metrics = NewMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		store:    store,
		factory:  factory,
		cfg:      cfg,
		metrics:  metrics,
		logger:   log.WithComponent("session-supervisor"),
		registry: newRegistry(),
		pending:  newPendingBuffer(),
		now:      time.Now,
		guards:   make(map[string]*atomic.Bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, loop := range []string{loopPersistence, loopCleanup, loopReconnect, loopRestore, loopSync} {
		s.guards[loop] = &atomic.Bool{}
	}
	return s
}

// Metrics retorna os coletores do supervisor
func (s *Supervisor) Metrics() *Metrics {
	return s.metrics
}

// Start inicia os loops periódicos e a restauração inicial
func (s *Supervisor) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info().
		Dur("saveInterval", s.cfg.SaveInterval).
		Dur("cleanupInterval", s.cfg.CleanupInterval).
		Dur("reconnectInterval", s.cfg.ReconnectInterval).
		Dur("restoreInterval", s.cfg.RestoreInterval).
		Dur("syncInterval", s.cfg.SyncInterval).
		Msg("Starting session supervisor")

	s.startLoop(loopPersistence, s.cfg.SaveInterval, s.persistTick)
	s.startLoop(loopCleanup, s.cfg.CleanupInterval, s.cleanupTick)
	s.startLoop(loopReconnect, s.cfg.ReconnectInterval, s.reconnectTick)
	s.startLoop(loopRestore, s.cfg.RestoreInterval, s.restoreTick)
	s.startLoop(loopSync, s.cfg.SyncInterval, s.syncTick)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.cfg.InitialRestoreDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
		case <-timer.C:
			s.runTick(loopRestore, s.restoreTick)
		}
	}()
}

// Close para os loops, grava credenciais pendentes e fecha todos os handles.
// Registros no store não são apagados.
func (s *Supervisor) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info().Int("tenants", s.registry.len()).Msg("Stopping session supervisor")

	s.cancel()
	s.wg.Wait()

	// Última chance de gravar credenciais sujas
	flushCtx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	s.persistTick(flushCtx)
	s.syncTick(flushCtx)
	cancel()

	for _, e := range s.registry.snapshot() {
		e.mu.Lock()
		if e.cancelReconnect != nil {
			e.cancelReconnect()
		}
		if e.deleteTimer != nil {
			e.deleteTimer.Stop()
		}
		h := e.detach()
		e.mu.Unlock()

		if h != nil {
			h.Close()
		}
	}

	if n := s.pending.Len(); n > 0 {
		s.logger.Warn().Int("pending", n).Msg("Supervisor stopped with unsaved credentials")
	}
	return nil
}

// GetActiveHandle retorna o handle apenas se a conexão estiver aberta
func (s *Supervisor) GetActiveHandle(tenantID string) (whatsapp.Handle, error) {
	id, err := session.NormalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	e, ok := s.registry.get(id)
	if !ok {
		return nil, session.NewSessionError(id, "get handle", session.ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed || e.handle == nil || e.status != session.StatusOpen {
		return nil, session.NewSessionError(id, "get handle", session.ErrSessionNotActive)
	}
	return e.handle, nil
}

// RequestNewSession inicia o pareamento de um tenant e retorna o código
func (s *Supervisor) RequestNewSession(ctx context.Context, tenantID string) (*whatsapp.PairingToken, error) {
	id, err := session.NormalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithTenant(id)

	// Um tenant morto pode ser pareado de novo; qualquer outro estado bloqueia
	if existing, ok := s.registry.get(id); ok {
		existing.mu.Lock()
		dead := !existing.removed && (existing.health == session.HealthDead || existing.status == session.StatusBanned)
		existing.mu.Unlock()

		if !dead {
			return nil, session.NewSessionError(id, "request session", session.ErrSessionAlreadyExists)
		}
		if err := s.teardown(ctx, existing, reasonDead); err != nil {
			log.WithError(err).Warn().Msg("Failed to delete stale record before pairing")
		}
	}

	now := s.now()
	e, ok := s.registry.reserve(id, now)
	if !ok {
		return nil, session.NewSessionError(id, "request session", session.ErrSessionAlreadyExists)
	}
	s.pending.CancelDelete(id)

	log.Info().Msg("Starting pairing for new session")

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	h, err := s.factory.Create(connectCtx, id, nil)
	if err != nil {
		s.failPairing(e, err)
		return nil, err
	}

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		h.Close()
		return nil, session.NewSessionError(id, "request session", session.ErrSessionNotFound)
	}
	gen, violation := s.installLocked(e, h)
	e.mu.Unlock()
	if violation != nil {
		panic(violation)
	}
	s.watch(e, h, gen)

	code, err := h.Pair(connectCtx)
	if err != nil {
		s.failPairing(e, err)
		return nil, err
	}

	token := &whatsapp.PairingToken{
		Token:     uuid.New(),
		TenantID:  id,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.PairingTimeout),
	}

	logger.LogTenantEvent(s.logger, "pairing_started", id, map[string]interface{}{
		"token":     token.Token.String(),
		"expiresAt": token.ExpiresAt,
	})
	return token, nil
}

// failPairing derruba um tenant cujo pareamento falhou logo no início
func (s *Supervisor) failPairing(e *entry, cause error) {
	s.logger.WithTenant(e.id).WithError(cause).Warn().Msg("Pairing failed, discarding session")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()

	if err := s.teardown(ctx, e, reasonPairingFailed); err != nil {
		s.logger.WithTenant(e.id).WithError(err).Warn().Msg("Failed to clean up after pairing failure")
	}
}

// RequestRemoval derruba a sessão e apaga o registro durável
func (s *Supervisor) RequestRemoval(ctx context.Context, tenantID string) error {
	id, err := session.NormalizeTenantID(tenantID)
	if err != nil {
		return err
	}

	// A reserva bloqueia a restauração enquanto o registro é apagado
	e, reserved := s.registry.reserve(id, s.now())
	if !reserved {
		return s.teardown(ctx, e, reasonRemoval)
	}

	if _, err := s.store.Load(ctx, id); errors.Is(err, session.ErrSessionNotFound) {
		s.discard(e)
		return session.NewSessionError(id, "remove", session.ErrSessionNotFound)
	}

	// Falha transitória no Load também segue para o delete; o teardown deixa
	// a exclusão pendente se o store continuar fora
	return s.teardown(ctx, e, reasonRemoval)
}

// GetHealth retorna o snapshot de um tenant
func (s *Supervisor) GetHealth(tenantID string) (*session.TenantInfo, error) {
	id, err := session.NormalizeTenantID(tenantID)
	if err != nil {
		return nil, err
	}

	e, ok := s.registry.get(id)
	if !ok {
		return nil, session.NewSessionError(id, "health", session.ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return nil, session.NewSessionError(id, "health", session.ErrSessionNotFound)
	}
	return e.info(), nil
}

// List retorna os snapshots de todos os tenants, ordenados
func (s *Supervisor) List() []*session.TenantInfo {
	entries := s.registry.snapshot()
	infos := make([]*session.TenantInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			infos = append(infos, e.info())
		}
		e.mu.Unlock()
	}
	return infos
}

// ListActive retorna os tenants com conexão aberta
func (s *Supervisor) ListActive() []string {
	return s.registry.listActive()
}

// teardown remove um tenant: cancela reconexões, fecha o handle, apaga o
// registro no store e descarta gravações pendentes. Chamadas repetidas são
// ignoradas. Uma falha ao apagar no store fica pendente para o loop de sync.
func (s *Supervisor) teardown(ctx context.Context, e *entry, reason string) error {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil
	}
	e.removed = true
	if e.cancelReconnect != nil {
		e.cancelReconnect()
		e.cancelReconnect = nil
	}
	if e.deleteTimer != nil {
		e.deleteTimer.Stop()
		e.deleteTimer = nil
	}
	e.markedForReconnect = false
	h := e.detach()
	e.mu.Unlock()

	// Fechar fora do lock: o consumidor de eventos também usa o lock do tenant
	if h != nil {
		h.Close()
	}

	var deleteErr error
	if err := s.store.Delete(ctx, e.id); err != nil {
		deleteErr = fmt.Errorf("delete record: %w", err)
		s.pending.MarkDelete(e.id, s.now())
		s.logger.WithTenant(e.id).WithError(err).Warn().Msg("Failed to delete session record, will retry")
	}
	s.pending.Remove(e.id)
	s.registry.remove(e.id, e)

	s.metrics.Teardowns.WithLabelValues(reason).Inc()
	logger.LogTenantEvent(s.logger, "torn_down", e.id, map[string]interface{}{"reason": reason})
	return deleteErr
}

// installLocked instala h no tenant e retorna a nova geração. Deve ser
// chamado com e.mu travado. Um handle anterior ainda vinculado viola a regra
// de um handle por tenant: ele é fechado, o tenant vira dead e o erro volta
// para o chamador, que entra em pânico depois de soltar o lock.
func (s *Supervisor) installLocked(e *entry, h whatsapp.Handle) (uint64, error) {
	prev, gen := e.install(h)
	if prev == nil {
		return gen, nil
	}

	go prev.Close()
	e.health = session.HealthDead
	e.markedForReconnect = false
	return gen, session.NewSessionError(e.id, "install", session.ErrConcurrentModification)
}

// discard libera uma reserva que nunca recebeu handle
func (s *Supervisor) discard(e *entry) {
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	s.registry.remove(e.id, e)
}

// scheduleTeardown derruba o tenant em background, fora da goroutine atual
func (s *Supervisor) scheduleTeardown(e *entry, reason string) {
	go func() {
		defer s.recoverTenant("teardown", e.id)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
		defer cancel()

		if err := s.teardown(ctx, e, reason); err != nil {
			s.logger.WithTenant(e.id).WithError(err).Warn().Str("reason", reason).Msg("Teardown finished with errors")
		}
	}()
}

// isPermanent indica falhas de conexão que nunca se resolvem com nova tentativa
func isPermanent(err error) bool {
	return errors.Is(err, session.ErrPermanentBan) || errors.Is(err, session.ErrInvalidCredentialData)
}
