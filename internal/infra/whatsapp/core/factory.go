package core

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/internal/infra/whatsapp/connection"
	"zkeeper/pkg/logger"
)

// Factory cria handles whatsmeow a partir do sqlstore
type Factory struct {
	container *sqlstore.Container
	pairing   *connection.PairingManager
	label     string
	waLogger  waLog.Logger
	logger    logger.Logger
}

var _ whatsapp.Factory = (*Factory)(nil)

// NewFactory cria uma nova instância da factory
func NewFactory(container *sqlstore.Container, pairing *connection.PairingManager, pairingLabel string, log logger.Logger) *Factory {
	return &Factory{
		container: container,
		pairing:   pairing,
		label:     pairingLabel,
		waLogger:  logger.NewWhatsAppLoggerAdapter(log.WithComponent("whatsmeow")),
		logger:    log.WithComponent("whatsapp-factory"),
	}
}

// ValidateCredentials implementa whatsapp.Factory
func (f *Factory) ValidateCredentials(blob []byte) error {
	return ValidateCredentials(blob)
}

// Create abre uma conexão; creds vazias iniciam um pareamento novo
func (f *Factory) Create(ctx context.Context, tenantID string, creds []byte) (whatsapp.Handle, error) {
	if len(creds) == 0 {
		return f.createFresh(ctx, tenantID)
	}
	return f.restore(ctx, tenantID, creds)
}

func (f *Factory) createFresh(ctx context.Context, tenantID string) (whatsapp.Handle, error) {
	log := f.logger.WithTenant(tenantID)

	device := f.container.NewDevice()
	client := whatsmeow.NewClient(device, f.waLogger.Sub(tenantID))
	h := newHandle(tenantID, client, f.pairing, f.label, f.logger)

	// O canal vive enquanto o handle estiver aberto
	qrChan, err := client.GetQRChannel(h.ctx)
	if err != nil {
		h.Close()
		return nil, session.NewSessionError(tenantID, "create", fmt.Errorf("%w: %v", session.ErrProtocolConnectFailure, err))
	}
	f.pairing.Watch(tenantID, qrChan)

	if err := f.connect(ctx, h); err != nil {
		return nil, err
	}

	log.Info().Msg("Fresh WhatsApp session started, waiting for pairing")
	return h, nil
}

func (f *Factory) restore(ctx context.Context, tenantID string, creds []byte) (whatsapp.Handle, error) {
	log := f.logger.WithTenant(tenantID)

	_, jid, err := ParseCredentials(creds)
	if err != nil {
		return nil, session.NewSessionError(tenantID, "restore", err)
	}

	device, err := f.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, session.NewSessionError(tenantID, "restore", fmt.Errorf("%w: load device: %v", session.ErrProtocolConnectFailure, err))
	}
	if device == nil {
		// O whatsmeow apaga o device no logout
		return nil, session.NewSessionError(tenantID, "restore", fmt.Errorf("%w: device %s no longer registered", session.ErrPermanentBan, jid))
	}

	client := whatsmeow.NewClient(device, f.waLogger.Sub(tenantID))
	h := newHandle(tenantID, client, f.pairing, f.label, f.logger)

	if err := f.connect(ctx, h); err != nil {
		return nil, err
	}

	log.WithField("jid", jid.String()).Info().Msg("WhatsApp session restored")
	return h, nil
}

func (f *Factory) connect(ctx context.Context, h *Handle) error {
	if err := h.client.Connect(); err != nil {
		h.Close()
		return session.NewSessionError(h.tenantID, "connect", fmt.Errorf("%w: %v", session.ErrProtocolConnectFailure, err))
	}

	// Connect não recebe contexto; um cancelamento durante a conexão descarta o handle
	if err := ctx.Err(); err != nil {
		h.Close()
		return session.NewSessionError(h.tenantID, "connect", err)
	}
	return nil
}
