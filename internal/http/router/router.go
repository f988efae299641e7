package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"zkeeper/internal/app/config"
	"zkeeper/internal/http/handlers"
	appMiddleware "zkeeper/internal/http/middleware"
	"zkeeper/internal/http/responses"
	"zkeeper/pkg/logger"
)

// Router representa o roteador principal da aplicação
type Router struct {
	*chi.Mux
	config         *config.Config
	logger         logger.Logger
	sessionHandler *handlers.SessionHandler
	healthHandler  *handlers.HealthHandler
	metricsHandler http.Handler
	panics         prometheus.Counter
}

// New cria uma nova instância do router
func New(
	cfg *config.Config,
	log logger.Logger,
	sessionHandler *handlers.SessionHandler,
	healthHandler *handlers.HealthHandler,
	metricsHandler http.Handler,
	panics prometheus.Counter,
) *Router {
	r := &Router{
		Mux:            chi.NewRouter(),
		config:         cfg,
		logger:         log.WithComponent("router"),
		sessionHandler: sessionHandler,
		healthHandler:  healthHandler,
		metricsHandler: metricsHandler,
		panics:         panics,
	}

	r.setupMiddlewares()
	r.setupRoutes()

	return r
}

// setupMiddlewares configura os middlewares globais
func (r *Router) setupMiddlewares() {
	// Middleware básicos do Chi
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Timeout global
	r.Use(middleware.Timeout(60 * time.Second))

	// Middlewares customizados
	r.Use(appMiddleware.NewCORS(r.config.CORS.AllowedOrigins))
	r.Use(appMiddleware.NewLoggingMiddleware(r.logger))
	r.Use(appMiddleware.NewRecoveryMiddleware(r.logger, r.panics))
	r.Use(appMiddleware.NewRateLimit(r.config.RateLimit.Requests, r.config.RateLimit.Window))
}

// setupRoutes configura as rotas da aplicação
func (r *Router) setupRoutes() {
	r.Get("/health", r.healthHandler.Health)
	if r.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", r.metricsHandler)
	}

	r.Route("/sessions", func(rt chi.Router) {
		rt.Get("/", r.sessionHandler.ListSessions)

		rt.Route("/{number}", func(rt chi.Router) {
			rt.Delete("/", r.sessionHandler.DeleteSession)
			rt.Post("/pair", r.sessionHandler.PairSession)
			rt.Get("/health", r.sessionHandler.GetHealth)
			rt.Get("/qr", r.sessionHandler.GetQRCode)
			rt.Post("/send", r.sessionHandler.SendText)
			rt.Get("/settings", r.sessionHandler.GetSettings)
			rt.Put("/settings", r.sessionHandler.UpdateSettings)
		})
	})

	// Rota catch-all para 404
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.NotFound(w, "Endpoint não encontrado")
	})
}
