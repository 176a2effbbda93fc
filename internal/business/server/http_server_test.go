package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/web-login/internal/config"
	oidcmock "github.com/openkcm/web-login/internal/oidc/mock"
	"github.com/openkcm/web-login/pkg/weblogin"
)

func testConfig() *config.Config {
	authOff := false
	cfg := &config.Config{
		Login: config.Login{
			IssuerURL: "https://idp.example.com",
			BaseURL:   "http://app.example.com",
			ClientAuth: config.ClientAuth{
				Type:     "none",
				ClientID: "test-client",
			},
			Secret: commoncfg.SourceRef{
				Source: "embedded",
				Value:  "a-test-secret-that-is-32-bytes!!",
			},
			Session:      config.Session{Store: config.StoreMemory},
			AuthRequired: &authOff,
		},
	}
	cfg.ApplyDefaults()

	return cfg
}

func newTestMiddleware(t *testing.T, cfg *config.Config) *weblogin.Middleware {
	t.Helper()

	middleware, err := weblogin.New(&cfg.Login, oidcmock.NewClient())
	require.NoError(t, err)

	return middleware
}

func TestCreateHTTPServer(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, initMeters(t.Context(), cfg))

	server := createHTTPServer(t.Context(), cfg, newTestMiddleware(t, cfg))

	t.Run("ping", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://app.example.com/ping", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"result": "ping"}`, rec.Body.String())
	})

	t.Run("userinfo without session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://app.example.com/userinfo", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("login route is mounted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://app.example.com/login", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestStartHTTPServer_InvalidAddress(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Address = "tcp://invalid-host-name:-1"

	err := StartHTTPServer(t.Context(), cfg, newTestMiddleware(t, cfg))
	assert.Error(t, err)
}

func TestStartHTTPServer_GracefulShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Address = "unix://" + filepath.Join(t.TempDir(), "server.sock")
	cfg.HTTP.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(t.Context())

	errCh := make(chan error, 1)
	go func() {
		errCh <- StartHTTPServer(ctx, cfg, newTestMiddleware(t, cfg))
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
