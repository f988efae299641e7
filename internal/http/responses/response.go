package responses

import (
	"encoding/json"
	"errors"
	"net/http"

	"zkeeper/internal/domain/session"
)

// Códigos de erro expostos pela API
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeInvalidTenant       = "INVALID_TENANT"
	CodeNotFound            = "NOT_FOUND"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionExists       = "SESSION_EXISTS"
	CodeSessionNotActive    = "SESSION_NOT_ACTIVE"
	CodeProtocolUnavailable = "PROTOCOL_UNAVAILABLE"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIResponse representa a estrutura padronizada de resposta da API
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// SuccessResponse representa uma resposta de sucesso para Swagger
type SuccessResponse struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message" example:"Session paired"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse representa uma resposta de erro para Swagger
type ErrorResponse struct {
	Success bool      `json:"success" example:"false"`
	Message string    `json:"message" example:"Failed to start pairing"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError representa detalhes de erro na resposta. Tenant vem preenchido
// quando o erro pertence a um tenant específico.
type APIError struct {
	Code    string `json:"code"`
	Tenant  string `json:"tenant,omitempty"`
	Details string `json:"details,omitempty"`
}

// WriteJSON escreve uma resposta JSON padronizada
func WriteJSON(w http.ResponseWriter, statusCode int, success bool, message string, data interface{}, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: success,
		Message: message,
		Data:    data,
		Error:   err,
	})
}

// Success escreve uma resposta 200
func Success(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusOK, true, message, data, nil)
}

// Created escreve uma resposta 201
func Created(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusCreated, true, message, data, nil)
}

// BadRequest escreve uma resposta 400 para corpo ou parâmetro inválido
func BadRequest(w http.ResponseWriter, message string, details string) {
	WriteJSON(w, http.StatusBadRequest, false, message, nil, &APIError{
		Code:    CodeBadRequest,
		Details: details,
	})
}

// NotFound escreve uma resposta 404 para rotas desconhecidas
func NotFound(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusNotFound, false, message, nil, &APIError{Code: CodeNotFound})
}

// TooManyRequests escreve uma resposta de rate limit excedido
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusTooManyRequests, false, message, nil, &APIError{Code: CodeRateLimited})
}

// InternalError escreve uma resposta 500 sem detalhes internos
func InternalError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusInternalServerError, false, message, nil, &APIError{Code: CodeInternal})
}

// ErrorStatus classifica um erro de domínio em status HTTP e código da API
func ErrorStatus(err error) (int, string) {
	var validation *session.ValidationError

	switch {
	case errors.As(err, &validation):
		if validation.Field == "number" {
			return http.StatusBadRequest, CodeInvalidTenant
		}
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, session.ErrInvalidPhoneNumber):
		return http.StatusBadRequest, CodeInvalidTenant
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, CodeSessionNotFound
	case errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict, CodeSessionExists
	case errors.Is(err, session.ErrSessionNotActive):
		return http.StatusConflict, CodeSessionNotActive
	case errors.Is(err, session.ErrProtocolConnectFailure):
		return http.StatusServiceUnavailable, CodeProtocolUnavailable
	case errors.Is(err, session.ErrTransientStore):
		return http.StatusServiceUnavailable, CodeStoreUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Error escreve a resposta de um erro de domínio e retorna o status usado.
// Erros internos não expõem detalhes.
func Error(w http.ResponseWriter, message string, err error) int {
	status, code := ErrorStatus(err)

	apiErr := &APIError{Code: code}
	var sessErr *session.SessionError
	if errors.As(err, &sessErr) {
		apiErr.Tenant = sessErr.TenantID
	}

	var validation *session.ValidationError
	switch {
	case errors.As(err, &validation):
		apiErr.Details = validation.Message
	case status != http.StatusInternalServerError:
		apiErr.Details = err.Error()
	}

	WriteJSON(w, status, false, message, nil, apiErr)
	return status
}
