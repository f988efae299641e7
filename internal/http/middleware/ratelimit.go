package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"zkeeper/internal/http/responses"
)

// NewRateLimit cria um middleware de rate limiting por IP
func NewRateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.TooManyRequests(w, "Rate limit excedido")
		}),
	)
}
