package core

import (
	"encoding/json"
	"fmt"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"

	"zkeeper/internal/domain/session"
)

// Credentials é o snapshot persistido de um device pareado.
// As chaves do protocolo ficam no sqlstore do whatsmeow; o blob guarda
// apenas o necessário para reabrir o device certo.
type Credentials struct {
	JID          string `json:"jid"`
	PushName     string `json:"pushName,omitempty"`
	Platform     string `json:"platform,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
}

// CredentialsFromDevice extrai o snapshot de um device; nil se ainda não pareado
func CredentialsFromDevice(device *store.Device) *Credentials {
	if device == nil || device.ID == nil {
		return nil
	}
	return &Credentials{
		JID:          device.ID.String(),
		PushName:     device.PushName,
		Platform:     device.Platform,
		BusinessName: device.BusinessName,
	}
}

// Marshal serializa as credenciais
func (c *Credentials) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// ParseCredentials decodifica e valida um blob de credenciais
func ParseCredentials(blob []byte) (*Credentials, types.JID, error) {
	if len(blob) == 0 {
		return nil, types.EmptyJID, fmt.Errorf("%w: empty blob", session.ErrInvalidCredentialData)
	}

	var creds Credentials
	if err := json.Unmarshal(blob, &creds); err != nil {
		return nil, types.EmptyJID, fmt.Errorf("%w: %v", session.ErrInvalidCredentialData, err)
	}

	jid, err := types.ParseJID(creds.JID)
	if err != nil {
		return nil, types.EmptyJID, fmt.Errorf("%w: invalid jid %q: %v", session.ErrInvalidCredentialData, creds.JID, err)
	}
	if jid.User == "" || jid.Server != types.DefaultUserServer {
		return nil, types.EmptyJID, fmt.Errorf("%w: jid %q is not a user jid", session.ErrInvalidCredentialData, creds.JID)
	}

	return &creds, jid, nil
}

// ValidateCredentials rejeita blobs que não podem ser restaurados
func ValidateCredentials(blob []byte) error {
	_, _, err := ParseCredentials(blob)
	return err
}
