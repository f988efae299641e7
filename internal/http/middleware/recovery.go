package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/http/responses"
	"zkeeper/pkg/logger"
)

// NewRecoveryMiddleware recupera panics dos handlers. Violações de invariante
// do supervisor chegam aqui como *session.SessionError e são registradas com
// o tenant. panics pode ser nil.
func NewRecoveryMiddleware(log logger.Logger, panics prometheus.Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Abort do servidor deve continuar subindo
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if panics != nil {
					panics.Inc()
				}

				entry := log.WithFields(map[string]interface{}{
					"stack":     string(debug.Stack()),
					"method":    r.Method,
					"path":      r.URL.Path,
					"requestId": middleware.GetReqID(r.Context()),
				})

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}

				var sessErr *session.SessionError
				switch {
				case errors.As(err, &sessErr):
					entry = entry.WithTenant(sessErr.TenantID)
				case chi.URLParam(r, "number") != "":
					entry = entry.WithTenant(chi.URLParam(r, "number"))
				}
				entry.WithError(err).Error().Msg("Panic recovered")

				responses.InternalError(w, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
