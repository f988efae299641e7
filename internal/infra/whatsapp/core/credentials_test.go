package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"

	"zkeeper/internal/domain/session"
)

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		wantErr bool
	}{
		{"valid user jid", `{"jid":"5511999999999@s.whatsapp.net","pushName":"Loja"}`, false},
		{"valid device jid", `{"jid":"5511999999999:12@s.whatsapp.net"}`, false},
		{"empty blob", ``, true},
		{"not json", `not-json`, true},
		{"json array", `[1,2,3]`, true},
		{"missing jid", `{"pushName":"Loja"}`, true},
		{"group jid", `{"jid":"120363025246125486@g.us"}`, true},
		{"server only", `{"jid":"s.whatsapp.net"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentials([]byte(tt.blob))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, session.ErrInvalidCredentialData)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseCredentialsReturnsJID(t *testing.T) {
	creds, jid, err := ParseCredentials([]byte(`{"jid":"5511999999999:3@s.whatsapp.net","platform":"android"}`))
	require.NoError(t, err)

	assert.Equal(t, "5511999999999", jid.User)
	assert.Equal(t, uint16(3), jid.Device)
	assert.Equal(t, "android", creds.Platform)
}

func TestCredentialsFromDevice(t *testing.T) {
	assert.Nil(t, CredentialsFromDevice(nil))
	assert.Nil(t, CredentialsFromDevice(&store.Device{}))

	jid := types.NewADJID("5511999999999", 0, 7)
	device := &store.Device{ID: &jid, PushName: "Loja", Platform: "smba"}

	creds := CredentialsFromDevice(device)
	require.NotNil(t, creds)

	blob, err := creds.Marshal()
	require.NoError(t, err)
	require.NoError(t, ValidateCredentials(blob))

	parsed, parsedJID, err := ParseCredentials(blob)
	require.NoError(t, err)
	assert.Equal(t, jid, parsedJID)
	assert.Equal(t, "Loja", parsed.PushName)
}
