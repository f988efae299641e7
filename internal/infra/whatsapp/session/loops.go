package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
)

// Nomes dos loops periódicos
const (
	loopPersistence = "persistence"
	loopCleanup     = "cleanup"
	loopReconnect   = "reconnect"
	loopRestore     = "restore"
	loopSync        = "sync"
)

// startLoop executa tick a cada intervalo até o supervisor parar
func (s *Supervisor) startLoop(name string, interval time.Duration, tick func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				s.logger.Debug().Str("loop", name).Msg("Loop stopped")
				return
			case <-ticker.C:
				s.runTick(name, tick)
			}
		}
	}()
}

// runTick executa uma rodada isolada: uma rodada ainda em andamento faz a
// seguinte ser pulada e um panic não derruba o loop.
func (s *Supervisor) runTick(name string, tick func(context.Context)) {
	guard := s.guards[name]
	if !guard.CompareAndSwap(false, true) {
		s.logger.Debug().Str("loop", name).Msg("Previous tick still running, skipping")
		return
	}
	defer guard.Store(false)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.metrics.LoopPanics.WithLabelValues(name).Inc()
			s.logger.Error().
				Str("loop", name).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Loop tick panicked")
		}
		s.metrics.LoopDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	tick(s.ctx)
}

// recoverTenant isola panics de um único tenant
func (s *Supervisor) recoverTenant(loop, tenantID string) {
	if r := recover(); r != nil {
		s.metrics.LoopPanics.WithLabelValues(loop).Inc()
		s.logger.WithTenant(tenantID).Error().
			Str("loop", loop).
			Interface("panic", r).
			Str("stack", string(debug.Stack())).
			Msg("Tenant processing panicked")
	}
}

// fanOut processa os itens em paralelo, limitado por LoopConcurrency.
// Falhas e panics de um tenant não afetam os demais.
func fanOut[T any](s *Supervisor, ctx context.Context, loop string, items []T, key func(T) string, fn func(context.Context, T)) {
	var g errgroup.Group
	g.SetLimit(s.cfg.LoopConcurrency)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer s.recoverTenant(loop, key(item))
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

// releaseOnPanic libera um tenant preso em reconexão quando a fábrica entra
// em panic. O tenant fica morto para a limpeza e o panic segue para recoverTenant.
func releaseOnPanic(e *entry) {
	if r := recover(); r != nil {
		e.mu.Lock()
		e.reconnecting = false
		e.cancelReconnect = nil
		e.health = session.HealthDead
		e.markedForReconnect = false
		e.mu.Unlock()
		panic(r)
	}
}

func entryID(e *entry) string { return e.id }

func identity(id string) string { return id }

func (s *Supervisor) createReleasing(ctx context.Context, e *entry, creds []byte) (whatsapp.Handle, error) {
	defer releaseOnPanic(e)
	return s.factory.Create(ctx, e.id, creds)
}

func (s *Supervisor) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// ============================================================================
// PERSISTÊNCIA
// ============================================================================

func (s *Supervisor) persistTick(ctx context.Context) {
	fanOut(s, ctx, loopPersistence, s.registry.snapshot(), entryID, s.persistTenant)
	s.metrics.observeTenants(s.List(), s.pending.Len())
}

// persistTenant grava as credenciais sujas de um tenant. O lock do tenant fica
// preso durante a gravação: o status é conferido no momento da escrita e um
// teardown concorrente espera a gravação terminar antes de apagar o registro.
func (s *Supervisor) persistTenant(ctx context.Context, e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed || !e.dirty || !e.health.Persistable() || e.status != session.StatusOpen {
		return
	}

	data := e.credentials
	log := s.logger.WithTenant(e.id)

	storeCtx, cancel := s.storeContext(ctx)
	err := s.store.Save(storeCtx, e.id, data)
	cancel()

	now := s.now()
	switch {
	case err == nil:
		e.dirty = false
		e.lastBackup = now
		s.pending.Remove(e.id)
		s.metrics.Saves.WithLabelValues("ok").Inc()
		log.Debug().Msg("Credentials persisted")

	case errors.Is(err, session.ErrInvalidCredentialData):
		e.dirty = false
		s.metrics.Saves.WithLabelValues("invalid").Inc()
		log.WithError(err).Warn().Msg("Dropping invalid credential snapshot")

	default:
		e.dirty = false
		s.pending.Add(e.id, data, now)
		s.metrics.Saves.WithLabelValues("buffered").Inc()
		log.WithError(err).Warn().Msg("Store unavailable, credentials buffered for retry")
	}
}

// ============================================================================
// LIMPEZA
// ============================================================================

func (s *Supervisor) cleanupTick(ctx context.Context) {
	fanOut(s, ctx, loopCleanup, s.registry.snapshot(), entryID, s.cleanupTenant)
}

// cleanupTenant reclassifica a saúde de um tenant pelo tempo desconectado e
// pelas tentativas de reconexão. Passado MaxSessionAge o tenant é abandonado
// mesmo que ainda tenha tentativas disponíveis.
func (s *Supervisor) cleanupTenant(ctx context.Context, e *entry) {
	var reason string

	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return
	}

	now := s.now()
	log := s.logger.WithTenant(e.id)

	switch {
	case e.health == session.HealthDead || e.status == session.StatusBanned:
		reason = reasonDead

	case e.reconnecting:
		// reconexão em andamento decide o próximo estado

	case e.status == session.StatusConnecting && !e.connectingSince.IsZero() &&
		now.Sub(e.connectingSince) > s.cfg.PairingTimeout:
		if !e.paired {
			e.health = session.HealthDead
			reason = reasonPairingTimeout
			break
		}
		// Handle reconectado que nunca abriu conta como tentativa falha
		e.status = session.StatusClosed
		e.health = session.HealthDegraded
		e.reconnectAttempts++
		if e.disconnectedAt.IsZero() {
			e.disconnectedAt = now
		}
		log.Warn().Int("attempts", e.reconnectAttempts).Msg("Connection did not open in time")

	case !e.disconnectedAt.IsZero():
		elapsed := now.Sub(e.disconnectedAt)
		switch {
		case elapsed > s.cfg.MaxSessionAge:
			e.health = session.HealthDead
			reason = reasonMaxAge
		case e.reconnectAttempts >= s.cfg.MaxFailedAttempts:
			e.health = session.HealthDead
			reason = reasonRetryCap
		case elapsed > s.cfg.DisconnectedCleanupTime:
			e.health = session.HealthDisconnected
			if !e.markedForReconnect {
				e.markedForReconnect = true
				log.Info().Dur("disconnectedFor", elapsed).Msg("Scheduling reconnect")
			}
		}
	}
	e.mu.Unlock()

	if reason == "" {
		return
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.teardown(storeCtx, e, reason); err != nil {
		log.WithError(err).Warn().Str("reason", reason).Msg("Cleanup teardown finished with errors")
	}
}

// ============================================================================
// RECONEXÃO
// ============================================================================

func (s *Supervisor) reconnectTick(ctx context.Context) {
	fanOut(s, ctx, loopReconnect, s.registry.snapshot(), entryID, s.reconnectTenant)
}

// reconnectTenant reconstrói o handle a partir das últimas credenciais
// conhecidas. reconnecting impede tentativas simultâneas para o mesmo tenant;
// o handle antigo é desvinculado e fechado antes de criar o novo.
func (s *Supervisor) reconnectTenant(ctx context.Context, e *entry) {
	e.mu.Lock()
	if e.removed || !e.markedForReconnect || e.reconnecting ||
		e.health == session.HealthDead || e.reconnectAttempts >= s.cfg.MaxFailedAttempts {
		e.mu.Unlock()
		return
	}

	log := s.logger.WithTenant(e.id)

	creds := e.credentials
	if len(creds) == 0 {
		e.health = session.HealthDead
		e.markedForReconnect = false
		e.mu.Unlock()
		log.Warn().Msg("No credentials to reconnect with, marking dead")
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	e.reconnecting = true
	e.cancelReconnect = cancel
	e.setConnecting(s.now())
	old := e.detach()
	attempt := e.reconnectAttempts + 1
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}

	log.Info().Int("attempt", attempt).Msg("Reconnecting session")
	h, err := s.createReleasing(connectCtx, e, creds)

	e.mu.Lock()
	e.reconnecting = false
	e.cancelReconnect = nil

	if e.removed {
		e.mu.Unlock()
		if h != nil {
			h.Close()
		}
		s.metrics.Reconnects.WithLabelValues("cancelled").Inc()
		log.Debug().Msg("Reconnect superseded by teardown")
		return
	}

	if err != nil {
		e.reconnectAttempts++
		e.status = session.StatusClosed
		if e.disconnectedAt.IsZero() {
			e.disconnectedAt = s.now()
		}

		result := "failed"
		if isPermanent(err) || e.reconnectAttempts >= s.cfg.MaxFailedAttempts {
			e.health = session.HealthDead
			e.markedForReconnect = false
			result = "abandoned"
		}
		attempts := e.reconnectAttempts
		e.mu.Unlock()

		s.metrics.Reconnects.WithLabelValues(result).Inc()
		log.WithError(err).Warn().Int("attempts", attempts).Str("result", result).Msg("Reconnect failed")
		return
	}

	// O contador só zera quando o handle novo emitir connected
	e.health = session.HealthActive
	e.markedForReconnect = false
	gen, violation := s.installLocked(e, h)
	e.mu.Unlock()

	if violation != nil {
		panic(violation)
	}
	s.watch(e, h, gen)
	s.metrics.Reconnects.WithLabelValues("ok").Inc()
	log.Info().Msg("Session handle rebuilt")
}

// ============================================================================
// RESTAURAÇÃO
// ============================================================================

func (s *Supervisor) restoreTick(ctx context.Context) {
	storeCtx, cancel := s.storeContext(ctx)
	records, err := s.store.ListActive(storeCtx)
	cancel()
	if err != nil {
		s.logger.WithError(err).Warn().Msg("Failed to list stored sessions")
		return
	}

	var missing []*session.StoredSession
	for _, rec := range records {
		if _, ok := s.registry.get(rec.Number); ok {
			continue
		}
		if s.pending.IsDeleting(rec.Number) {
			continue
		}
		missing = append(missing, rec)
	}
	if len(missing) == 0 {
		return
	}

	s.logger.Info().Int("count", len(missing)).Msg("Restoring stored sessions")
	fanOut(s, ctx, loopRestore, missing, func(rec *session.StoredSession) string { return rec.Number }, s.restoreTenant)
}

// restoreTenant recria o handle de um registro que não está no registro em memória
func (s *Supervisor) restoreTenant(ctx context.Context, rec *session.StoredSession) {
	now := s.now()
	e, ok := s.registry.reserve(rec.Number, now)
	if !ok {
		return
	}
	log := s.logger.WithTenant(e.id)

	if s.pending.IsDeleting(e.id) {
		s.discard(e)
		return
	}

	// A lista pode estar velha: uma remoção concluída entre ListActive e a
	// reserva já marcou o registro como apagado
	storeCtx, storeCancel := s.storeContext(ctx)
	creds, err := s.store.Load(storeCtx, e.id)
	storeCancel()
	if err != nil {
		s.discard(e)
		if errors.Is(err, session.ErrSessionNotFound) {
			log.Debug().Msg("Stored session removed before restore")
		} else {
			log.WithError(err).Warn().Msg("Failed to reload stored session, skipping restore")
		}
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	e.mu.Lock()
	e.credentials = creds
	e.paired = true
	e.reconnecting = true
	e.cancelReconnect = cancel
	e.mu.Unlock()

	h, err := s.createReleasing(connectCtx, e, creds)

	e.mu.Lock()
	e.reconnecting = false
	e.cancelReconnect = nil

	if e.removed {
		e.mu.Unlock()
		if h != nil {
			h.Close()
		}
		return
	}

	if err != nil {
		if isPermanent(err) {
			e.health = session.HealthDead
			e.mu.Unlock()

			log.WithError(err).Warn().Msg("Stored session cannot be restored, deleting")
			storeCtx, storeCancel := s.storeContext(ctx)
			defer storeCancel()
			if terr := s.teardown(storeCtx, e, reasonRestoreFailed); terr != nil {
				log.WithError(terr).Warn().Msg("Failed to delete unrecoverable session")
			}
			return
		}

		// Fica desconectado; limpeza e reconexão assumem daqui
		e.status = session.StatusClosed
		e.health = session.HealthDegraded
		e.disconnectedAt = s.now()
		e.reconnectAttempts = 1
		e.mu.Unlock()

		log.WithError(err).Warn().Msg("Restore failed, will retry through reconnect")
		return
	}

	e.health = session.HealthActive
	gen, violation := s.installLocked(e, h)
	e.mu.Unlock()

	if violation != nil {
		panic(violation)
	}
	s.watch(e, h, gen)
	log.Info().Msg("Session restored from store")
}

// ============================================================================
// SINCRONIZAÇÃO DO BUFFER
// ============================================================================

func (s *Supervisor) syncTick(ctx context.Context) {
	fanOut(s, ctx, loopSync, s.pending.Snapshot(), identity, s.syncTenant)
	fanOut(s, ctx, loopSync, s.pending.Deletes(), identity, s.retryDelete)
	s.metrics.PendingSaves.Set(float64(s.pending.Len()))
}

// syncTenant refaz uma gravação pendente. Tenants removidos perdem a entrada;
// tenants sem conexão aberta a mantêm para o próximo ciclo.
func (s *Supervisor) syncTenant(ctx context.Context, id string) {
	ps, ok := s.pending.Get(id)
	if !ok {
		return
	}

	e, ok := s.registry.get(id)
	if !ok {
		s.pending.RemoveIfUnchanged(id, ps.Timestamp)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		s.pending.RemoveIfUnchanged(id, ps.Timestamp)
		return
	}
	if e.status != session.StatusOpen {
		return
	}

	storeCtx, cancel := s.storeContext(ctx)
	err := s.store.Save(storeCtx, id, ps.Data)
	cancel()

	log := s.logger.WithTenant(id)
	switch {
	case err == nil:
		s.pending.RemoveIfUnchanged(id, ps.Timestamp)
		if ps.Timestamp.After(e.lastBackup) {
			e.lastBackup = ps.Timestamp
		}
		s.metrics.Saves.WithLabelValues("retried").Inc()
		log.Info().Msg("Buffered credentials persisted")
	case errors.Is(err, session.ErrInvalidCredentialData):
		s.pending.RemoveIfUnchanged(id, ps.Timestamp)
		s.metrics.Saves.WithLabelValues("invalid").Inc()
		log.WithError(err).Warn().Msg("Dropping invalid buffered credentials")
	default:
		log.WithError(err).Debug().Msg("Buffered save still failing")
	}
}

// retryDelete refaz a exclusão de um tenant já derrubado
func (s *Supervisor) retryDelete(ctx context.Context, id string) {
	if e, ok := s.registry.get(id); ok {
		e.mu.Lock()
		live := !e.removed
		e.mu.Unlock()
		if live {
			// O número foi pareado de novo
			s.pending.CancelDelete(id)
			return
		}
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := s.store.Delete(storeCtx, id); err != nil {
		s.logger.WithTenant(id).WithError(fmt.Errorf("retry delete: %w", err)).Debug().Msg("Pending delete still failing")
		return
	}
	s.pending.CancelDelete(id)
	s.logger.WithTenant(id).Info().Msg("Pending delete completed")
}
