//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/web-login/internal/business"
	"github.com/openkcm/web-login/internal/config"
)

// fakeIDP serves just enough of the discovery surface for the server
// to start: the login round trip itself is covered by the middleware
// tests.
func fakeIDP(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 server.URL,
			"authorization_endpoint": server.URL + "/authorize",
			"token_endpoint":         server.URL + "/token",
			"jwks_uri":               server.URL + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	})

	return server
}

func TestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	idp := fakeIDP(t)

	socket := filepath.Join(t.TempDir(), "web-login.sock")

	authOff := false
	cfg := &config.Config{
		HTTP: config.HTTPServer{
			Address:         "unix://" + socket,
			ShutdownTimeout: 5 * time.Second,
		},
		Login: config.Login{
			IssuerURL: idp.URL,
			BaseURL:   "http://app.example.com",
			ClientAuth: config.ClientAuth{
				Type:     "none",
				ClientID: "integration-client",
			},
			Secret: commoncfg.SourceRef{
				Source: "embedded",
				Value:  "an-integration-test-secret-of-32-bytes!!",
			},
			Session:      config.Session{Store: config.StoreMemory},
			AuthRequired: &authOff,
		},
	}
	cfg.ApplyDefaults()

	errCh := make(chan error, 1)
	go func() {
		errCh <- business.Main(ctx, cfg)
	}()

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return new(net.Dialer).DialContext(ctx, "unix", socket)
			},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	waitForServer(t, client)

	t.Run("ping answers without a session", func(t *testing.T) {
		resp, err := client.Get("http://app.example.com/ping")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("userinfo rejects anonymous callers", func(t *testing.T) {
		resp, err := client.Get("http://app.example.com/userinfo")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("login redirects to the provider", func(t *testing.T) {
		resp, err := client.Get("http://app.example.com/login")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Location"), idp.URL+"/authorize")

		var gotState bool
		for _, c := range resp.Cookies() {
			if c.Name == "auth_state" && c.Value != "" {
				gotState = true
			}
		}
		assert.True(t, gotState, "login should set the state cookie")
	})

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func waitForServer(t *testing.T, client *http.Client) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get("http://app.example.com/ping")
		if err == nil {
			resp.Body.Close()
			return
		}

		time.Sleep(100 * time.Millisecond)
	}

	t.Fatal("server did not come up")
}
