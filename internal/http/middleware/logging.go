package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zkeeper/pkg/logger"
)

// slowRequest acima disso o request é logado como warning. O pareamento
// espera o connect do protocolo, então o limite fica folgado.
const slowRequest = 5 * time.Second

// NewLoggingMiddleware loga cada request com o tenant da rota, quando houver
func NewLoggingMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				duration := time.Since(start)
				status := ww.Status()

				entry := log.WithFields(map[string]interface{}{
					"method":    r.Method,
					"path":      r.URL.Path,
					"status":    status,
					"ms":        duration.Milliseconds(),
					"requestId": middleware.GetReqID(r.Context()),
				})
				// O RouteContext só tem os parâmetros depois do roteamento
				if number := chi.URLParam(r, "number"); number != "" {
					entry = entry.WithTenant(number)
				}

				switch {
				case status >= http.StatusInternalServerError:
					entry.Error().Msg("HTTP error")
				case status >= http.StatusBadRequest:
					entry.Warn().Msg("HTTP client error")
				case duration > slowRequest:
					entry.Warn().Msg("Slow request")
				default:
					entry.Debug().Msg("HTTP")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
