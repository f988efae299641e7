// Package main zkeeper
// @title           zkeeper WhatsApp Session API
// @version         1.0
// @description     Supervisor multi-tenant de sessões WhatsApp: pareamento, persistência de credenciais, reconexão e restauração.
// @BasePath        /
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver do store de dispositivos do whatsmeow

	"zkeeper/internal/app"
	"zkeeper/internal/app/config"
	"zkeeper/internal/app/server"
	"zkeeper/internal/http/router"
	"zkeeper/internal/infra/database"
	"zkeeper/pkg/logger"
)

func main() {
	// Carregar configuração
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Configurar logger usando as configurações do .env
	baseLog := logger.Setup(cfg)
	log := baseLog.WithComponent("main")

	log.WithFields(map[string]interface{}{
		"env":  cfg.App.Env,
		"port": cfg.App.Port,
	}).Info().Msg("Starting zkeeper")

	ctx := context.Background()

	// Conectar ao banco de dados
	db, err := database.NewDatabase(ctx, cfg.GetDatabaseDSN(), cfg.App.Env == "development", baseLog)
	if err != nil {
		log.WithError(err).Fatal().Msg("Failed to connect to database")
	}

	log.Info().Msg("Connected to database successfully")

	// Executar migrações
	if err := database.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal().Msg("Failed to run migrations")
	}

	// Inicializar container de dependências
	container, err := app.NewContainer(ctx, cfg, db, baseLog)
	if err != nil {
		log.WithError(err).Fatal().Msg("Failed to initialize container")
	}

	// Loops do supervisor e restauração inicial
	container.Start(ctx)

	// Configurar router com handlers
	metrics := container.Supervisor.Metrics()
	handler := router.New(cfg, baseLog, container.SessionHandler, container.HealthHandler, metrics.Handler(), metrics.HTTPPanics())

	// Criar servidor
	srv := server.New(cfg, handler, log)

	// Canal para capturar sinais do sistema
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Iniciar servidor em goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal().Msg("Failed to start server")
		}
	}()

	log.Info().Msg("zkeeper started successfully")

	// Aguardar sinal de parada
	<-stop

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error().Msg("Error during server shutdown")
	}

	if err := container.Close(); err != nil {
		log.WithError(err).Error().Msg("Error during container shutdown")
	}

	log.Info().Msg("Application stopped")
}
