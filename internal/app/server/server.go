package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"zkeeper/internal/app/config"
	"zkeeper/pkg/logger"
)

// Folga sobre o connect do protocolo para escrever a resposta do pareamento
const writeSlack = 15 * time.Second

// Server é o servidor HTTP da API de sessões
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// New cria o servidor. O WriteTimeout acompanha o ConnectTimeout das
// sessões, já que POST /sessions/{number}/pair espera o connect terminar.
func New(cfg *config.Config, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.App.Host, cfg.App.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      WriteTimeout(cfg.Session),
			IdleTimeout:       120 * time.Second,
		},
		logger: log.WithComponent("http-server"),
	}
}

// WriteTimeout calcula o limite de escrita a partir da configuração de sessões
func WriteTimeout(cfg config.SessionConfig) time.Duration {
	timeout := cfg.ConnectTimeout + writeSlack
	if timeout < 30*time.Second {
		return 30 * time.Second
	}
	return timeout
}

// Addr retorna o endereço de escuta configurado
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start bloqueia servindo requests até Stop
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info().Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop encerra o servidor esperando os requests em andamento. Deve rodar
// antes de fechar o supervisor para nenhum handler pegar um handle fechado.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error().Msg("Server forced to shutdown")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
