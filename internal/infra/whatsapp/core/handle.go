package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/internal/infra/whatsapp/connection"
	"zkeeper/internal/infra/whatsapp/events"
	"zkeeper/pkg/logger"
)

const (
	eventBufferSize = 64

	// pairCodeTimeout é a validade do código de pareamento por telefone
	pairCodeTimeout = 160 * time.Second
)

// Handle adapta um *whatsmeow.Client para whatsapp.Handle
type Handle struct {
	tenantID string
	client   *whatsmeow.Client
	pairing  *connection.PairingManager
	label    string

	ctx    context.Context
	cancel context.CancelFunc

	events    chan whatsapp.Event
	handlerID uint32

	mu       sync.Mutex
	closed   bool
	emitters sync.WaitGroup

	logger logger.Logger
}

var _ whatsapp.Handle = (*Handle)(nil)

func newHandle(tenantID string, client *whatsmeow.Client, pairing *connection.PairingManager, label string, log logger.Logger) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		tenantID: tenantID,
		client:   client,
		pairing:  pairing,
		label:    label,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan whatsapp.Event, eventBufferSize),
		logger:   log.WithTenant(tenantID),
	}
	h.handlerID = client.AddEventHandler(h.handleEvent)
	return h
}

// Events retorna o fluxo ordenado de eventos de ciclo de vida
func (h *Handle) Events() <-chan whatsapp.Event {
	return h.events
}

// handleEvent roda na goroutine de dispatch do whatsmeow
func (h *Handle) handleEvent(evt interface{}) {
	ev, ok := events.Classify(evt)
	if !ok {
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"eventType": events.GetEventType(evt),
		"kind":      ev.Kind,
		"reason":    ev.Reason,
	}).Debug().Msg("WhatsApp lifecycle event")

	switch ev.Kind {
	case whatsapp.EventCredentialsUpdated:
		h.emitCredentials()
	case whatsapp.EventConnected:
		h.emit(ev)
		h.pairing.Clear(h.tenantID)
		// O push name pode ter mudado desde o último snapshot
		h.emitCredentials()
	default:
		h.emit(ev)
	}
}

func (h *Handle) emitCredentials() {
	creds := CredentialsFromDevice(h.client.Store)
	if creds == nil {
		return
	}

	blob, err := creds.Marshal()
	if err != nil {
		h.logger.WithError(err).Error().Msg("Failed to encode credentials")
		return
	}
	h.emit(whatsapp.CredentialsUpdated(blob))
}

func (h *Handle) emit(ev whatsapp.Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.emitters.Add(1)
	h.mu.Unlock()
	defer h.emitters.Done()

	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

// Send envia uma mensagem de texto simples
func (h *Handle) Send(ctx context.Context, to, text string) error {
	if !h.client.IsConnected() || !h.client.IsLoggedIn() {
		return session.NewSessionError(h.tenantID, "send", session.ErrSessionNotActive)
	}

	recipient := types.NewJID(to, types.DefaultUserServer)
	msg := &waE2E.Message{
		Conversation: proto.String(text),
	}

	resp, err := h.client.SendMessage(ctx, recipient, msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	h.logger.WithFields(map[string]interface{}{
		"messageId": resp.ID,
		"to":        to,
	}).Debug().Msg("Text message sent")
	return nil
}

// Pair solicita o código de pareamento por telefone para o próprio tenant
func (h *Handle) Pair(ctx context.Context) (string, error) {
	if h.client.Store.ID != nil {
		return "", session.NewSessionError(h.tenantID, "pair", session.ErrSessionAlreadyExists)
	}

	code, err := h.client.PairPhone(ctx, h.tenantID, true, whatsmeow.PairClientChrome, h.label)
	if err != nil {
		return "", session.NewSessionError(h.tenantID, "pair", fmt.Errorf("%w: %v", session.ErrProtocolConnectFailure, err))
	}

	h.pairing.SetPairCode(h.tenantID, code, pairCodeTimeout)
	h.logger.Info().Msg("Pairing code generated")
	return code, nil
}

// Close desconecta o cliente e fecha o canal de eventos
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.cancel()
	h.mu.Unlock()

	h.client.RemoveEventHandler(h.handlerID)
	h.client.Disconnect()

	h.emitters.Wait()
	close(h.events)

	h.logger.Debug().Msg("WhatsApp handle closed")
}
