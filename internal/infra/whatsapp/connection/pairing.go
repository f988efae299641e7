package connection

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"

	"zkeeper/internal/domain/session"
	"zkeeper/pkg/logger"
)

// QRCodeTimeout é a validade padrão de um QR code emitido pelo servidor
const QRCodeTimeout = 30 * time.Second

// PairingData representa os códigos de pareamento vigentes de um tenant
type PairingData struct {
	QRCode        string    `json:"qrCode,omitempty"`
	QRExpiresAt   time.Time `json:"qrExpiresAt,omitempty"`
	PairCode      string    `json:"pairCode,omitempty"`
	PairExpiresAt time.Time `json:"pairExpiresAt,omitempty"`
}

// PairingManager guarda QR codes e códigos de pareamento por tenant
type PairingManager struct {
	codes  map[string]*PairingData
	mutex  sync.RWMutex
	out    io.Writer
	now    func() time.Time
	logger logger.Logger
}

// NewPairingManager cria uma nova instância do PairingManager.
// out recebe a renderização do QR no terminal; nil desliga a exibição.
func NewPairingManager(out io.Writer, log logger.Logger) *PairingManager {
	return &PairingManager{
		codes:  make(map[string]*PairingData),
		out:    out,
		now:    time.Now,
		logger: log.WithComponent("pairing-manager"),
	}
}

// NewTerminalPairingManager exibe os QR codes no stdout
func NewTerminalPairingManager(log logger.Logger) *PairingManager {
	return NewPairingManager(os.Stdout, log)
}

// Watch consome o canal de QR do whatsmeow até ele ser fechado
func (pm *PairingManager) Watch(tenantID string, qrChan <-chan whatsmeow.QRChannelItem) {
	go pm.processQREvents(tenantID, qrChan)
}

func (pm *PairingManager) processQREvents(tenantID string, qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case whatsmeow.QRChannelEventCode:
			timeout := evt.Timeout
			if timeout <= 0 {
				timeout = QRCodeTimeout
			}
			pm.SetQRCode(tenantID, evt.Code, timeout)
		case whatsmeow.QRChannelSuccess.Event:
			pm.Clear(tenantID)
			pm.logger.WithTenant(tenantID).Info().Msg("QR code authentication successful")
		case whatsmeow.QRChannelTimeout.Event:
			pm.Clear(tenantID)
			pm.logger.WithTenant(tenantID).Warn().Msg("QR code expired")
		case whatsmeow.QRChannelEventError:
			pm.Clear(tenantID)
			pm.logger.WithError(evt.Error).WithTenant(tenantID).Error().Msg("QR code error")
		default:
			pm.logger.WithFields(map[string]interface{}{
				"tenant": tenantID,
				"event":  evt.Event,
			}).Debug().Msg("QR event received")
		}
	}
}

// SetQRCode registra o QR code mais recente de um tenant
func (pm *PairingManager) SetQRCode(tenantID, code string, timeout time.Duration) {
	pm.mutex.Lock()
	data := pm.entry(tenantID)
	data.QRCode = code
	data.QRExpiresAt = pm.now().Add(timeout)
	pm.mutex.Unlock()

	pm.logger.WithTenant(tenantID).Info().Msg("QR code generated")
	pm.displayQRCodeInTerminal(tenantID, code, timeout)
}

// SetPairCode registra o código de pareamento por telefone
func (pm *PairingManager) SetPairCode(tenantID, code string, timeout time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	data := pm.entry(tenantID)
	data.PairCode = code
	data.PairExpiresAt = pm.now().Add(timeout)
}

func (pm *PairingManager) entry(tenantID string) *PairingData {
	data, ok := pm.codes[tenantID]
	if !ok {
		data = &PairingData{}
		pm.codes[tenantID] = data
	}
	return data
}

// GetQRCode retorna o QR code vigente; ErrSessionNotFound se não houver
func (pm *PairingManager) GetQRCode(tenantID string) (string, error) {
	data, err := pm.Get(tenantID)
	if err != nil {
		return "", err
	}
	if data.QRCode == "" {
		return "", session.ErrSessionNotFound
	}
	return data.QRCode, nil
}

// GetPairCode retorna o código de pareamento vigente
func (pm *PairingManager) GetPairCode(tenantID string) (string, error) {
	data, err := pm.Get(tenantID)
	if err != nil {
		return "", err
	}
	if data.PairCode == "" {
		return "", session.ErrSessionNotFound
	}
	return data.PairCode, nil
}

// Get retorna uma cópia dos códigos ainda válidos de um tenant
func (pm *PairingManager) Get(tenantID string) (*PairingData, error) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	data, ok := pm.codes[tenantID]
	if !ok {
		return nil, session.ErrSessionNotFound
	}

	now := pm.now()
	dataCopy := *data
	if now.After(dataCopy.QRExpiresAt) {
		dataCopy.QRCode = ""
		dataCopy.QRExpiresAt = time.Time{}
	}
	if now.After(dataCopy.PairExpiresAt) {
		dataCopy.PairCode = ""
		dataCopy.PairExpiresAt = time.Time{}
	}
	return &dataCopy, nil
}

// Clear remove os códigos de um tenant
func (pm *PairingManager) Clear(tenantID string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	delete(pm.codes, tenantID)
}

// CleanupExpired remove entradas cujos códigos já expiraram
func (pm *PairingManager) CleanupExpired() int {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	now := pm.now()
	expired := 0
	for tenantID, data := range pm.codes {
		if now.After(data.QRExpiresAt) && now.After(data.PairExpiresAt) {
			delete(pm.codes, tenantID)
			expired++
		}
	}

	if expired > 0 {
		pm.logger.WithField("count", expired).Debug().Msg("Cleaned up expired pairing codes")
	}
	return expired
}

// StartCleanupRoutine inicia a limpeza periódica até o contexto ser cancelado
func (pm *PairingManager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.CleanupExpired()
		}
	}
}

func (pm *PairingManager) displayQRCodeInTerminal(tenantID, code string, timeout time.Duration) {
	if pm.out == nil {
		return
	}

	line := strings.Repeat("=", 50)
	fmt.Fprintln(pm.out, "\n"+line)
	fmt.Fprintf(pm.out, "QR CODE PARA O NÚMERO %s\n", tenantID)
	fmt.Fprintln(pm.out, "WhatsApp > Aparelhos conectados > Conectar um aparelho")
	fmt.Fprintln(pm.out, line)

	qrterminal.GenerateHalfBlock(code, qrterminal.L, pm.out)

	fmt.Fprintln(pm.out, line)
	fmt.Fprintf(pm.out, "Este QR Code expira em %s\n", timeout)
	fmt.Fprintln(pm.out, line+"\n")
}

// Close descarta todos os códigos
func (pm *PairingManager) Close() {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	count := len(pm.codes)
	pm.codes = make(map[string]*PairingData)

	pm.logger.WithField("clearedCount", count).Info().Msg("PairingManager closed")
}
