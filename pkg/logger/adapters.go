package logger

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// ============================================================================
// WHATSAPP ADAPTER
// ============================================================================

// WhatsAppLoggerAdapter adapta nosso Logger para o waLog.Logger do whatsmeow
type WhatsAppLoggerAdapter struct {
	logger Logger
}

// NewWhatsAppLoggerAdapter cria adaptador para whatsmeow
func NewWhatsAppLoggerAdapter(logger Logger) waLog.Logger {
	return &WhatsAppLoggerAdapter{logger: logger}
}

func (w *WhatsAppLoggerAdapter) Errorf(msg string, args ...interface{}) {
	w.logger.Error().Msgf(msg, args...)
}

func (w *WhatsAppLoggerAdapter) Warnf(msg string, args ...interface{}) {
	w.logger.Warn().Msgf(msg, args...)
}

func (w *WhatsAppLoggerAdapter) Infof(msg string, args ...interface{}) {
	w.logger.Info().Msgf(msg, args...)
}

// Debugf rebaixa para trace: o whatsmeow é muito verboso em debug
func (w *WhatsAppLoggerAdapter) Debugf(msg string, args ...interface{}) {
	w.logger.Trace().Msgf(msg, args...)
}

func (w *WhatsAppLoggerAdapter) Sub(module string) waLog.Logger {
	if module == "" {
		return w
	}
	return &WhatsAppLoggerAdapter{logger: w.logger.WithComponent(module)}
}

// ============================================================================
// BUN ORM ADAPTER
// ============================================================================

// BunQueryHook implementa hook para logging de queries do Bun ORM
type BunQueryHook struct {
	logger Logger
}

// NewBunQueryHook cria um novo hook para logging de queries do Bun
func NewBunQueryHook(logger Logger) bun.QueryHook {
	return &BunQueryHook{
		logger: logger.WithComponent("database"),
	}
}

func (h *BunQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *BunQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	durationMs := duration.Milliseconds()

	if event.Err != nil {
		h.logger.Error().
			Err(event.Err).
			Str("query", sanitizeQuery(event.Query)).
			Int64("duration_ms", durationMs).
			Str("operation", event.Operation()).
			Msg("Database query failed")
		return
	}

	// Queries lentas (> 100ms) sempre logam como WARNING
	if durationMs > 100 {
		h.logger.Warn().
			Str("operation", event.Operation()).
			Str("query", sanitizeQuery(event.Query)).
			Int64("duration_ms", durationMs).
			Msg("Slow database query")
		return
	}

	h.logger.Trace().
		Str("operation", event.Operation()).
		Int64("duration_ms", durationMs).
		Msg("DB operation completed")
}

// sanitizeQuery encurta a query e normaliza espaços para logging.
// session_data nunca aparece inteiro no log.
func sanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	const maxLength = 200
	if len(query) > maxLength {
		query = query[:maxLength] + "..."
	}

	return strings.Join(strings.Fields(query), " ")
}
