package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"zkeeper/internal/app/config"
	"zkeeper/pkg/logger"
)

func TestWriteTimeoutCoversPairingConnect(t *testing.T) {
	cfg := config.DefaultSessionConfig()

	cfg.ConnectTimeout = 2 * time.Minute
	assert.Equal(t, 2*time.Minute+writeSlack, WriteTimeout(cfg))

	cfg.ConnectTimeout = time.Second
	assert.Equal(t, 30*time.Second, WriteTimeout(cfg))
}

func TestNewUsesConfiguredAddress(t *testing.T) {
	cfg := &config.Config{Session: config.DefaultSessionConfig()}
	cfg.App.Host = "127.0.0.1"
	cfg.App.Port = "8080"

	srv := New(cfg, nil, logger.NewNop())
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
	assert.Equal(t, WriteTimeout(cfg.Session), srv.httpServer.WriteTimeout)
}
