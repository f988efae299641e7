package handlers

import (
	"net/http"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/domain/whatsapp"
	"zkeeper/internal/http/responses"
)

// HealthHandler implementa o handler para health check
type HealthHandler struct {
	manager whatsapp.SessionManager
}

// NewHealthHandler cria uma nova instância do health handler
func NewHealthHandler(manager whatsapp.SessionManager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Health verifica a saúde da aplicação e resume os tenants por estado
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.List()

	open := 0
	for _, info := range infos {
		if info.Status == session.StatusOpen {
			open++
		}
	}

	responses.Success(w, "Service is healthy", map[string]interface{}{
		"status":  "ok",
		"service": "zkeeper",
		"tenants": len(infos),
		"open":    open,
	})
}
