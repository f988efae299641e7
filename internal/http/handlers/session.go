package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zkeeper/internal/http/responses"
	sessionUC "zkeeper/internal/usecases/session"
	"zkeeper/pkg/logger"
)

// SessionHandler implementa os handlers para sessões
type SessionHandler struct {
	pairUseCase     *sessionUC.PairPhoneUseCase
	listUseCase     *sessionUC.ListSessionsUseCase
	healthUseCase   *sessionUC.GetHealthUseCase
	deleteUseCase   *sessionUC.DeleteSessionUseCase
	qrUseCase       *sessionUC.GetQRCodeUseCase
	sendUseCase     *sessionUC.SendTextUseCase
	settingsUseCase *sessionUC.SettingsUseCase
	logger          logger.Logger
}

// NewSessionHandler cria uma nova instância do session handler
func NewSessionHandler(
	pairUseCase *sessionUC.PairPhoneUseCase,
	listUseCase *sessionUC.ListSessionsUseCase,
	healthUseCase *sessionUC.GetHealthUseCase,
	deleteUseCase *sessionUC.DeleteSessionUseCase,
	qrUseCase *sessionUC.GetQRCodeUseCase,
	sendUseCase *sessionUC.SendTextUseCase,
	settingsUseCase *sessionUC.SettingsUseCase,
	logger logger.Logger,
) *SessionHandler {
	return &SessionHandler{
		pairUseCase:     pairUseCase,
		listUseCase:     listUseCase,
		healthUseCase:   healthUseCase,
		deleteUseCase:   deleteUseCase,
		qrUseCase:       qrUseCase,
		sendUseCase:     sendUseCase,
		settingsUseCase: settingsUseCase,
		logger:          logger.WithComponent("session-handler"),
	}
}

// ListSessions lista todos os tenants registrados
// @Summary      Listar Sessões
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  responses.SuccessResponse
// @Router       /sessions [get]
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	resp, err := h.listUseCase.Execute(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list sessions")
		return
	}

	responses.Success(w, "Sessões listadas com sucesso", resp)
}

// PairSession inicia o pareamento de um número
// @Summary      Parear Número
// @Tags         sessions
// @Produce      json
// @Param        number  path      string  true  "Número do tenant"
// @Success      201     {object}  responses.CreatedResponse
// @Failure      400     {object}  responses.ErrorResponse
// @Failure      409     {object}  responses.ErrorResponse
// @Router       /sessions/{number}/pair [post]
func (h *SessionHandler) PairSession(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	token, err := h.pairUseCase.Execute(r.Context(), number)
	if err != nil {
		h.writeError(w, err, "Failed to start pairing")
		return
	}

	responses.Created(w, "Pareamento iniciado", token)
}

// GetHealth retorna o snapshot de saúde de um tenant
// @Summary      Saúde da Sessão
// @Tags         sessions
// @Produce      json
// @Param        number  path      string  true  "Número do tenant"
// @Success      200     {object}  responses.SuccessResponse
// @Failure      404     {object}  responses.ErrorResponse
// @Router       /sessions/{number}/health [get]
func (h *SessionHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	info, err := h.healthUseCase.Execute(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, err, "Failed to get session health")
		return
	}

	responses.Success(w, "Sessão encontrada", info)
}

// GetQRCode retorna os códigos de pareamento vigentes
// @Summary      Códigos de Pareamento
// @Tags         sessions
// @Produce      json
// @Param        number  path      string  true  "Número do tenant"
// @Success      200     {object}  responses.SuccessResponse
// @Failure      404     {object}  responses.ErrorResponse
// @Router       /sessions/{number}/qr [get]
func (h *SessionHandler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	resp, err := h.qrUseCase.Execute(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, err, "Failed to get pairing codes")
		return
	}

	responses.Success(w, "Códigos de pareamento", resp)
}

// SendText envia uma mensagem de texto pela sessão do tenant
// @Summary      Enviar Texto
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        number   path      string  true  "Número do tenant"
// @Param        request  body      object  true  "Destinatário e mensagem"
// @Success      200      {object}  responses.SuccessResponse
// @Failure      409      {object}  responses.ErrorResponse  "Sessão não está aberta"
// @Router       /sessions/{number}/send [post]
func (h *SessionHandler) SendText(w http.ResponseWriter, r *http.Request) {
	var req sessionUC.SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responses.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	resp, err := h.sendUseCase.Execute(r.Context(), chi.URLParam(r, "number"), req)
	if err != nil {
		h.writeError(w, err, "Failed to send message")
		return
	}

	responses.Success(w, "Mensagem enviada", resp)
}

// DeleteSession derruba a sessão e apaga o registro
// @Summary      Remover Sessão
// @Tags         sessions
// @Produce      json
// @Param        number  path      string  true  "Número do tenant"
// @Success      200     {object}  responses.SuccessResponse
// @Failure      404     {object}  responses.ErrorResponse
// @Router       /sessions/{number} [delete]
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	if err := h.deleteUseCase.Execute(r.Context(), number); err != nil {
		h.writeError(w, err, "Failed to delete session")
		return
	}

	responses.Success(w, "Sessão removida com sucesso", map[string]string{"number": number})
}

// GetSettings retorna as configurações do tenant
func (h *SessionHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsUseCase.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, err, "Failed to load settings")
		return
	}

	responses.Success(w, "Configurações", settings)
}

// UpdateSettings altera as configurações do tenant
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req sessionUC.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responses.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	settings, err := h.settingsUseCase.Update(r.Context(), chi.URLParam(r, "number"), req)
	if err != nil {
		h.writeError(w, err, "Failed to update settings")
		return
	}

	responses.Success(w, "Configurações atualizadas", settings)
}

// writeError traduz erros de domínio para respostas HTTP
func (h *SessionHandler) writeError(w http.ResponseWriter, err error, message string) {
	status := responses.Error(w, message, err)

	switch {
	case status == http.StatusServiceUnavailable:
		h.logger.WithError(err).Warn().Msg(message)
	case status >= http.StatusInternalServerError:
		h.logger.WithError(err).Error().Msg(message)
	}
}
