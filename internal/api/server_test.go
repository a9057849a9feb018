package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shrinkbot/internal/api/health"
	"shrinkbot/pkg/logger"
)

func TestNewMux_Routes(t *testing.T) {
	webhookHits := 0
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		webhookHits++
		w.WriteHeader(http.StatusOK)
	})

	mux := NewMux(ServerConfig{ServiceName: "shrinkbot", Version: "1.2.3", TelegramWebhook: webhook},
		health.New(logger.Nop(), "shrinkbot", "1.2.3", nil), logger.Nop())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, WebhookPath, http.StatusOK},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}

	assert.Equal(t, 1, webhookHits)
}

func TestNewMux_WebhookOptional(t *testing.T) {
	mux := NewMux(ServerConfig{}, health.New(logger.Nop(), "shrinkbot", "dev", nil), logger.Nop())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, WebhookPath, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewMux_RootInfo(t *testing.T) {
	mux := NewMux(ServerConfig{ServiceName: "shrinkbot", Version: "1.2.3"},
		health.New(logger.Nop(), "shrinkbot", "1.2.3", nil), logger.Nop())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.JSONEq(t, `{"service":"shrinkbot","version":"1.2.3","status":"running"}`, rec.Body.String())
}
