package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkeeper/internal/domain/session"
	"zkeeper/internal/http/responses"
	"zkeeper/pkg/logger"
)

// bufferLogger grava as linhas JSON do zerolog em memória
func bufferLogger() (logger.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	zl := zerolog.New(buf).Level(zerolog.DebugLevel)
	return logger.NewZerologLogger(&zl), buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func newRouter(log logger.Logger, panics prometheus.Counter, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(log))
	r.Use(NewRecoveryMiddleware(log, panics))
	r.Get("/sessions/{number}/health", h)
	r.Get("/health", h)
	return r
}

func TestLoggingTagsTenantFromRoute(t *testing.T) {
	log, buf := bufferLogger()
	r := newRouter(log, nil, func(w http.ResponseWriter, r *http.Request) {
		responses.Error(w, "Failed to get session health", session.ErrSessionNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/254700000001/health", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	line := lastLine(t, buf)
	assert.Equal(t, "254700000001", line["tenant"])
	assert.Equal(t, "warn", line["level"])
	assert.EqualValues(t, http.StatusNotFound, line["status"])

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	line = lastLine(t, buf)
	assert.NotContains(t, line, "tenant")
	assert.Equal(t, "debug", line["level"])
}

func TestRecoveryCountsPanicsAndTagsTenant(t *testing.T) {
	log, buf := bufferLogger()
	panics := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_panics_total"})

	r := newRouter(log, panics, func(w http.ResponseWriter, r *http.Request) {
		panic(session.NewSessionError("254700000009", "install", session.ErrConcurrentModification))
	})

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(panics))

	var resp responses.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, responses.CodeInternal, resp.Error.Code)
	assert.Empty(t, resp.Error.Details)

	found := false
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(l, "Panic recovered") {
			found = true
			assert.Contains(t, l, `"tenant":"254700000009"`)
		}
	}
	assert.True(t, found)
}

func TestRecoveryWithoutCounter(t *testing.T) {
	log, _ := bufferLogger()
	r := newRouter(log, nil, func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/254700000001/health", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
