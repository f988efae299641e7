package session

import (
	"time"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
)

// watch inicia o consumidor de eventos de um handle. Existe um consumidor por
// handle; ele aplica os eventos na ordem de emissão e termina quando o canal
// é fechado pelo Close do handle.
func (s *Supervisor) watch(e *entry, h whatsapp.Handle, gen uint64) {
	go func() {
		for ev := range h.Events() {
			s.applyEvent(e, gen, ev)
		}
	}()
}

// applyEvent aplica um evento sob o lock do tenant. Eventos de um handle que
// já foi substituído (geração diferente) são descartados.
func (s *Supervisor) applyEvent(e *entry, gen uint64, ev whatsapp.Event) {
	defer s.recoverTenant("events", e.id)

	var (
		teardownNow   bool
		teardownLater bool
	)

	e.mu.Lock()
	if e.removed || e.generation != gen {
		e.mu.Unlock()
		return
	}

	now := s.now()
	log := s.logger.WithTenant(e.id)

	switch ev.Kind {
	case whatsapp.EventConnected:
		e.health = session.HealthActive
		e.status = session.StatusOpen
		e.reconnectAttempts = 0
		e.disconnectedAt = time.Time{}
		e.connectingSince = time.Time{}
		e.lastActiveAt = now
		e.markedForReconnect = false
		e.paired = true
		log.Info().Msg("Session connected")

	case whatsapp.EventDisconnected:
		wasConnecting := e.status == session.StatusConnecting
		e.status = session.StatusClosed
		// Vale a primeira queda até o próximo connected
		if e.disconnectedAt.IsZero() {
			e.disconnectedAt = now
		}

		switch {
		case ev.Reason.Terminal():
			e.status = session.StatusBanned
			e.health = session.HealthDead
			e.markedForReconnect = false
			teardownNow = true
			log.Warn().Str("reason", string(ev.Reason)).Msg("Session terminated by server")
		case !e.paired:
			// Pareamento que falhou não espera o ciclo de limpeza
			e.health = session.HealthDead
			teardownLater = e.deleteTimer == nil
			log.Warn().Msg("Pairing failed before completion")
		default:
			e.health = session.HealthDegraded
			if wasConnecting {
				// Handle recriado que caiu antes de abrir
				e.reconnectAttempts++
			}
			log.Info().Int("attempts", e.reconnectAttempts).Msg("Session disconnected, eligible for reconnect")
		}

	case whatsapp.EventCredentialsUpdated:
		if len(ev.Credentials) == 0 {
			break
		}
		e.credentials = ev.Credentials
		e.dirty = true
		e.paired = true
		e.lastActiveAt = now
		log.Debug().Msg("Credentials updated")

	default:
		log.Warn().Str("kind", string(ev.Kind)).Msg("Unknown lifecycle event")
	}

	if teardownLater {
		e.deleteTimer = time.AfterFunc(s.cfg.ImmediateDeleteDelay, func() {
			s.scheduleTeardown(e, reasonPairingFailed)
		})
	}
	e.mu.Unlock()

	s.metrics.EventsApplied.WithLabelValues(string(ev.Kind)).Inc()

	if teardownNow {
		s.scheduleTeardown(e, reasonBanned)
	}
}
