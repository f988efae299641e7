package whatsapp

// EventKind define os tipos de eventos de ciclo de vida
type EventKind string

const (
	EventConnected          EventKind = "connected"
	EventDisconnected       EventKind = "disconnected"
	EventCredentialsUpdated EventKind = "credentials_updated"
)

// DisconnectReason classifica uma desconexão
type DisconnectReason string

const (
	// ReasonRetryable cobre quedas de rede e timeouts
	ReasonRetryable DisconnectReason = "retryable"

	// ReasonBanned indica logout ou banimento pelo servidor
	ReasonBanned DisconnectReason = "banned"

	// ReasonReplaced indica que outro dispositivo assumiu a sessão
	ReasonReplaced DisconnectReason = "replaced"
)

// Terminal informa se a desconexão encerra a sessão sem nova tentativa
func (r DisconnectReason) Terminal() bool {
	return r == ReasonBanned || r == ReasonReplaced
}

// Event é um evento de ciclo de vida emitido por um Handle.
// Reason só é preenchido para EventDisconnected e Credentials só para
// EventCredentialsUpdated.
type Event struct {
	Kind        EventKind        `json:"kind"`
	Reason      DisconnectReason `json:"reason,omitempty"`
	Credentials []byte           `json:"-"`
}

// Connected cria um evento de conexão aberta
func Connected() Event {
	return Event{Kind: EventConnected}
}

// Disconnected cria um evento de desconexão com o motivo informado
func Disconnected(reason DisconnectReason) Event {
	return Event{Kind: EventDisconnected, Reason: reason}
}

// CredentialsUpdated cria um evento com o novo snapshot de credenciais
func CredentialsUpdated(creds []byte) Event {
	return Event{Kind: EventCredentialsUpdated, Credentials: creds}
}
