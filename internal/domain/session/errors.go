package session

import (
	"errors"
	"fmt"
)

// Erros de domínio específicos para sessões
var (
	// ErrSessionNotFound indica que o tenant não possui sessão (no registro ou no store)
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionAlreadyExists indica que o tenant já possui uma sessão viva
	ErrSessionAlreadyExists = errors.New("session already exists")

	// ErrSessionNotActive indica que a sessão existe mas não está aberta
	ErrSessionNotActive = errors.New("session not active")

	// ErrInvalidPhoneNumber indica que o número de telefone é inválido
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrTransientStore indica falha de rede/timeout no store; a gravação deve ser refeita
	ErrTransientStore = errors.New("transient store failure")

	// ErrInvalidCredentialData indica credenciais malformadas; nunca são gravadas nem refeitas
	ErrInvalidCredentialData = errors.New("invalid credential data")

	// ErrProtocolConnectFailure indica que o pareamento ou a reconexão foram rejeitados
	ErrProtocolConnectFailure = errors.New("protocol connect failure")

	// ErrPermanentBan indica estado irrecuperável sinalizado pelo protocolo
	ErrPermanentBan = errors.New("permanent ban")

	// ErrConcurrentModification indica violação do lock por tenant (nunca deveria ocorrer)
	ErrConcurrentModification = errors.New("concurrent modification")
)

// SessionError representa um erro específico de sessão com contexto adicional
type SessionError struct {
	TenantID string
	Op       string
	Err      error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.TenantID, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError cria um novo erro de sessão
func NewSessionError(tenantID, op string, err error) *SessionError {
	return &SessionError{
		TenantID: tenantID,
		Op:       op,
		Err:      err,
	}
}

// ValidationError representa um erro de validação
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap permite errors.Is(err, ErrInvalidPhoneNumber) para o campo number
func (e *ValidationError) Unwrap() error {
	if e.Field == "number" {
		return ErrInvalidPhoneNumber
	}
	return nil
}

// NewValidationError cria um novo erro de validação
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsTransient informa se o erro deve ser refeito mais tarde (buffer de gravações pendentes)
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}
