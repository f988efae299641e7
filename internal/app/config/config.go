package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Env  string
		Port string
		Host string
	}

	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	WhatsApp struct {
		DebugLevel   string
		PairingLabel string
	}

	// Session controla os loops do supervisor de sessões
	Session SessionConfig

	Logging struct {
		Level          string
		Output         string
		ConsoleFormat  string
		FilePath       string
		FileMaxSize    int
		FileMaxBackups int
		FileMaxAge     int
		FileCompress   bool
		ConsoleColors  bool
	}

	RateLimit struct {
		Requests int
		Window   time.Duration
	}

	CORS struct {
		AllowedOrigins string
	}
}

// SessionConfig agrupa intervalos e limites do ciclo de vida das sessões
type SessionConfig struct {
	SaveInterval      time.Duration
	CleanupInterval   time.Duration
	ReconnectInterval time.Duration
	RestoreInterval   time.Duration
	SyncInterval      time.Duration

	MaxSessionAge           time.Duration
	DisconnectedCleanupTime time.Duration
	MaxFailedAttempts       int
	InitialRestoreDelay     time.Duration
	ImmediateDeleteDelay    time.Duration
	PairingTimeout          time.Duration

	StoreTimeout    time.Duration
	ConnectTimeout  time.Duration
	LoopConcurrency int
}

// DefaultSessionConfig retorna os valores padrão do supervisor
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SaveInterval:            2 * time.Minute,
		CleanupInterval:         5 * time.Minute,
		ReconnectInterval:       30 * time.Second,
		RestoreInterval:         10 * time.Minute,
		SyncInterval:            time.Minute,
		MaxSessionAge:           24 * time.Hour,
		DisconnectedCleanupTime: 2 * time.Minute,
		MaxFailedAttempts:       5,
		InitialRestoreDelay:     10 * time.Second,
		ImmediateDeleteDelay:    30 * time.Second,
		PairingTimeout:          5 * time.Minute,
		StoreTimeout:            15 * time.Second,
		ConnectTimeout:          30 * time.Second,
		LoopConcurrency:         10,
	}
}

func LoadConfig() (*Config, error) {
	// Carregar .env se existir
	_ = godotenv.Load()

	cfg := &Config{}

	// App
	cfg.App.Env = getEnv("APP_ENV", "development")
	cfg.App.Port = getEnv("APP_PORT", "8080")
	cfg.App.Host = getEnv("APP_HOST", "0.0.0.0")

	// Database
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnv("DB_PORT", "5432")
	cfg.Database.User = getEnv("DB_USER", "zkeeper")
	cfg.Database.Password = getEnv("DB_PASSWORD", "zkeeper123")
	cfg.Database.Name = getEnv("DB_NAME", "zkeeper")
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", "disable")

	// WhatsApp
	cfg.WhatsApp.DebugLevel = getEnv("WA_DEBUG_LEVEL", "INFO")
	cfg.WhatsApp.PairingLabel = getEnv("WA_PAIRING_LABEL", "Chrome (Linux)")

	// Session supervisor
	def := DefaultSessionConfig()
	cfg.Session.SaveInterval = getEnvAsDuration("SESSION_SAVE_INTERVAL", def.SaveInterval)
	cfg.Session.CleanupInterval = getEnvAsDuration("SESSION_CLEANUP_INTERVAL", def.CleanupInterval)
	cfg.Session.ReconnectInterval = getEnvAsDuration("SESSION_RECONNECT_INTERVAL", def.ReconnectInterval)
	cfg.Session.RestoreInterval = getEnvAsDuration("SESSION_RESTORE_INTERVAL", def.RestoreInterval)
	cfg.Session.SyncInterval = getEnvAsDuration("SESSION_SYNC_INTERVAL", def.SyncInterval)
	cfg.Session.MaxSessionAge = getEnvAsDuration("SESSION_MAX_AGE", def.MaxSessionAge)
	cfg.Session.DisconnectedCleanupTime = getEnvAsDuration("SESSION_DISCONNECTED_CLEANUP_TIME", def.DisconnectedCleanupTime)
	cfg.Session.MaxFailedAttempts = getEnvAsInt("SESSION_MAX_FAILED_ATTEMPTS", def.MaxFailedAttempts)
	cfg.Session.InitialRestoreDelay = getEnvAsDuration("SESSION_INITIAL_RESTORE_DELAY", def.InitialRestoreDelay)
	cfg.Session.ImmediateDeleteDelay = getEnvAsDuration("SESSION_IMMEDIATE_DELETE_DELAY", def.ImmediateDeleteDelay)
	cfg.Session.PairingTimeout = getEnvAsDuration("SESSION_PAIRING_TIMEOUT", def.PairingTimeout)
	cfg.Session.StoreTimeout = getEnvAsDuration("SESSION_STORE_TIMEOUT", def.StoreTimeout)
	cfg.Session.ConnectTimeout = getEnvAsDuration("SESSION_CONNECT_TIMEOUT", def.ConnectTimeout)
	cfg.Session.LoopConcurrency = getEnvAsInt("SESSION_LOOP_CONCURRENCY", def.LoopConcurrency)

	// Logging
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.Output = getEnv("LOG_OUTPUT", "dual")
	cfg.Logging.ConsoleFormat = getEnv("LOG_CONSOLE_FORMAT", "console")
	cfg.Logging.FilePath = getEnv("LOG_FILE_PATH", "logs/zkeeper.log")
	cfg.Logging.FileMaxSize = getEnvAsInt("LOG_FILE_MAX_SIZE", 100)
	cfg.Logging.FileMaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", 3)
	cfg.Logging.FileMaxAge = getEnvAsInt("LOG_FILE_MAX_AGE", 28)
	cfg.Logging.FileCompress = getEnvAsBool("LOG_FILE_COMPRESS", true)
	cfg.Logging.ConsoleColors = getEnvAsBool("LOG_CONSOLE_COLORS", true)

	// Rate Limit
	cfg.RateLimit.Requests = getEnvAsInt("RATE_LIMIT_REQUESTS", 100)
	cfg.RateLimit.Window = getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute)

	// CORS
	cfg.CORS.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", "*")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate verifica a consistência da configuração, acumulando todos os erros
func (c *Config) Validate() error {
	var result error

	if c.App.Port == "" {
		result = multierror.Append(result, fmt.Errorf("APP_PORT must not be empty"))
	}
	if c.RateLimit.Requests <= 0 {
		result = multierror.Append(result, fmt.Errorf("RATE_LIMIT_REQUESTS must be greater than 0, got %d", c.RateLimit.Requests))
	}
	if err := c.Session.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result
}

// Validate verifica os parâmetros do supervisor
func (s SessionConfig) Validate() error {
	var result error

	intervals := map[string]time.Duration{
		"SESSION_SAVE_INTERVAL":      s.SaveInterval,
		"SESSION_CLEANUP_INTERVAL":   s.CleanupInterval,
		"SESSION_RECONNECT_INTERVAL": s.ReconnectInterval,
		"SESSION_RESTORE_INTERVAL":   s.RestoreInterval,
		"SESSION_SYNC_INTERVAL":      s.SyncInterval,
		"SESSION_STORE_TIMEOUT":      s.StoreTimeout,
		"SESSION_CONNECT_TIMEOUT":    s.ConnectTimeout,
	}
	for name, d := range intervals {
		if d <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be greater than 0, got %s", name, d))
		}
	}

	if s.MaxFailedAttempts < 1 {
		result = multierror.Append(result, fmt.Errorf("SESSION_MAX_FAILED_ATTEMPTS must be at least 1, got %d", s.MaxFailedAttempts))
	}
	if s.LoopConcurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("SESSION_LOOP_CONCURRENCY must be at least 1, got %d", s.LoopConcurrency))
	}
	if s.MaxSessionAge < s.DisconnectedCleanupTime {
		result = multierror.Append(result, fmt.Errorf("SESSION_MAX_AGE (%s) must not be shorter than SESSION_DISCONNECTED_CLEANUP_TIME (%s)", s.MaxSessionAge, s.DisconnectedCleanupTime))
	}
	if s.InitialRestoreDelay < 0 || s.ImmediateDeleteDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("restore and delete delays cannot be negative"))
	}

	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) GetDatabaseDSN() string {
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.Name + "?sslmode=" + c.Database.SSLMode
}

// Implementação da interface ConfigProvider para integração com o logger
func (c *Config) GetLogLevel() string         { return c.Logging.Level }
func (c *Config) GetLogOutput() string        { return c.Logging.Output }
func (c *Config) GetLogConsoleFormat() string { return c.Logging.ConsoleFormat }
func (c *Config) GetLogFilePath() string      { return c.Logging.FilePath }
func (c *Config) GetLogFileMaxSize() int      { return c.Logging.FileMaxSize }
func (c *Config) GetLogFileMaxBackups() int   { return c.Logging.FileMaxBackups }
func (c *Config) GetLogFileMaxAge() int       { return c.Logging.FileMaxAge }
func (c *Config) GetLogFileCompress() bool    { return c.Logging.FileCompress }
func (c *Config) GetLogConsoleColors() bool   { return c.Logging.ConsoleColors }
