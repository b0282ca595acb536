package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPServer_ConnectionTimeouts(t *testing.T) {
	s := NewHTTPServer(http.NewServeMux(), ":0")

	assert.Equal(t, readHeaderTimeout, s.server.ReadHeaderTimeout)
	assert.Equal(t, writeTimeout, s.server.WriteTimeout)
	assert.Equal(t, idleTimeout, s.server.IdleTimeout)
	// The callback handler holds the response open for up to 30s while
	// talking to the provider
	assert.Greater(t, s.server.WriteTimeout, callbackTimeout)
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
