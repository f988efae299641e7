package app

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"zkeeper/internal/app/config"
	"zkeeper/internal/http/handlers"
	"zkeeper/internal/infra/database"
	"zkeeper/internal/infra/whatsapp/connection"
	"zkeeper/internal/infra/whatsapp/core"
	"zkeeper/internal/infra/whatsapp/session"
	sessionUseCases "zkeeper/internal/usecases/session"
	"zkeeper/pkg/logger"
)

// Container gerencia todas as dependências da aplicação
type Container struct {
	config *config.Config

	// Database
	DB           *bun.DB
	DeviceStore  *sqlstore.Container
	SessionStore database.SessionStore

	// WhatsApp
	Pairing    *connection.PairingManager
	Factory    *core.Factory
	Supervisor *session.Supervisor

	// Use Cases
	PairPhoneUC     *sessionUseCases.PairPhoneUseCase
	ListSessionsUC  *sessionUseCases.ListSessionsUseCase
	GetHealthUC     *sessionUseCases.GetHealthUseCase
	DeleteSessionUC *sessionUseCases.DeleteSessionUseCase
	QRCodeUC        *sessionUseCases.GetQRCodeUseCase
	SendTextUC      *sessionUseCases.SendTextUseCase
	SettingsUC      *sessionUseCases.SettingsUseCase

	// Handlers
	SessionHandler *handlers.SessionHandler
	HealthHandler  *handlers.HealthHandler

	// Logger
	Logger logger.Logger

	stopPairingCleanup context.CancelFunc
}

// NewContainer cria um novo container de dependências
func NewContainer(ctx context.Context, cfg *config.Config, db *bun.DB, log logger.Logger) (*Container, error) {
	c := &Container{
		config: cfg,
		DB:     db,
		Logger: log.WithComponent("di-container"),
	}

	if err := c.initWhatsApp(ctx, log); err != nil {
		return nil, err
	}

	// Inicializar use cases
	c.initUseCases(log)

	// Inicializar handlers
	c.initHandlers(log)

	c.Logger.Info().Msg("Container initialized successfully")
	return c, nil
}

// initWhatsApp monta o store de dispositivos, a fábrica de handles e o supervisor
func (c *Container) initWhatsApp(ctx context.Context, log logger.Logger) error {
	waLogger := logger.NewWhatsAppLoggerAdapter(log.WithComponent("whatsmeow-store"))

	deviceStore, err := sqlstore.New(ctx, "postgres", c.config.GetDatabaseDSN(), waLogger)
	if err != nil {
		return fmt.Errorf("failed to open device store: %w", err)
	}
	c.DeviceStore = deviceStore

	c.Pairing = connection.NewTerminalPairingManager(log)
	c.Factory = core.NewFactory(deviceStore, c.Pairing, c.config.WhatsApp.PairingLabel, log)
	c.SessionStore = database.NewSessionStore(c.DB, c.Factory.ValidateCredentials, log)
	c.Supervisor = session.NewSupervisor(c.SessionStore, c.Factory, c.config.Session, nil, log)
	return nil
}

// initUseCases inicializa os casos de uso
func (c *Container) initUseCases(log logger.Logger) {
	c.PairPhoneUC = sessionUseCases.NewPairPhoneUseCase(c.Supervisor, log)
	c.ListSessionsUC = sessionUseCases.NewListSessionsUseCase(c.Supervisor, log)
	c.GetHealthUC = sessionUseCases.NewGetHealthUseCase(c.Supervisor, log)
	c.DeleteSessionUC = sessionUseCases.NewDeleteSessionUseCase(c.Supervisor, c.Pairing, log)
	c.QRCodeUC = sessionUseCases.NewGetQRCodeUseCase(c.Supervisor, c.Pairing, log)
	c.SendTextUC = sessionUseCases.NewSendTextUseCase(c.Supervisor, log)
	c.SettingsUC = sessionUseCases.NewSettingsUseCase(c.SessionStore, log)
}

// initHandlers inicializa os handlers
func (c *Container) initHandlers(log logger.Logger) {
	c.SessionHandler = handlers.NewSessionHandler(
		c.PairPhoneUC,
		c.ListSessionsUC,
		c.GetHealthUC,
		c.DeleteSessionUC,
		c.QRCodeUC,
		c.SendTextUC,
		c.SettingsUC,
		log,
	)

	c.HealthHandler = handlers.NewHealthHandler(c.Supervisor)
}

// Start inicia o supervisor e a limpeza periódica dos códigos de pareamento
func (c *Container) Start(ctx context.Context) {
	cleanupCtx, cancel := context.WithCancel(ctx)
	c.stopPairingCleanup = cancel
	go c.Pairing.StartCleanupRoutine(cleanupCtx)

	c.Supervisor.Start()
}

// Close encerra o container e todos os seus recursos
func (c *Container) Close() error {
	c.Logger.Info().Msg("Closing container")

	if c.stopPairingCleanup != nil {
		c.stopPairingCleanup()
	}

	// Supervisor primeiro: grava credenciais pendentes antes de fechar o banco
	if c.Supervisor != nil {
		if err := c.Supervisor.Close(); err != nil {
			c.Logger.WithError(err).Error().Msg("Failed to stop session supervisor")
		}
	}

	if c.Pairing != nil {
		c.Pairing.Close()
	}

	if c.DeviceStore != nil {
		if err := c.DeviceStore.Close(); err != nil {
			c.Logger.WithError(err).Warn().Msg("Failed to close device store")
		}
	}

	// Fechar banco de dados
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.WithError(err).Error().Msg("Failed to close database")
			return err
		}
	}

	c.Logger.Info().Msg("Container closed successfully")
	return nil
}
