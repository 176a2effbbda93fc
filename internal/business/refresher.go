package business

import (
	"context"
	"errors"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/internal/oidc"
	"github.com/openkcm/web-login/internal/session"
)

// TokenRefresherMain starts the token refresh job. It keeps the access
// tokens of stored sessions alive so long-lived sessions do not go
// stale between user requests.
func TokenRefresherMain(ctx context.Context, cfg *config.Config) error {
	if cfg.Login.Session.Store == config.StoreCookie {
		return errors.New("the token refresher needs a server side session store")
	}

	middleware, closeFn, err := initMiddleware(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the login middleware: %w", err)
	}

	defer closeFn()

	slogctx.Info(ctx, "Starting token refresh job")

	return startTokenRefresher(ctx, middleware.SessionStore(), middleware.Client(), cfg)
}

func startTokenRefresher(ctx context.Context, store session.Store, client oidc.Client, cfg *config.Config) error {
	c := time.Tick(cfg.TokenRefresher.RefreshInterval)
	for {
		slogctx.Info(ctx, "Triggering tokens refresh")
		if err := refreshExpiringSessions(ctx, store, client, cfg.TokenRefresher.ExpiryWindow); err != nil {
			slogctx.Error(ctx, "Failed to refresh tokens", "error", err)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}

// refreshExpiringSessions runs one refresh sweep. A failing session is
// logged and skipped: its tokens simply expire, the session itself
// stays valid until its own expiry.
func refreshExpiringSessions(ctx context.Context, store session.Store, client oidc.Client, window time.Duration) error {
	sessions, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	now := time.Now()

	var refreshed int
	for _, s := range sessions {
		if !s.TokenExpiring(now, window) {
			continue
		}

		tokens, err := client.Refresh(ctx, s.RefreshToken)
		if err != nil {
			slogctx.Warn(ctx, "Failed to refresh session tokens", "sessionID", s.ID, "error", err)
			continue
		}

		s.AccessToken = tokens.AccessToken
		s.TokenType = tokens.TokenType
		s.TokenExpiry = tokens.Expiry

		if tokens.RefreshToken != "" {
			s.RefreshToken = tokens.RefreshToken
		}
		if tokens.IDToken != "" {
			s.IDToken = tokens.IDToken
		}

		if err := store.Save(ctx, s); err != nil {
			slogctx.Warn(ctx, "Failed to save refreshed session", "sessionID", s.ID, "error", err)
			continue
		}

		refreshed++
	}

	slogctx.Info(ctx, "Token refresh sweep finished", "checked", len(sessions), "refreshed", refreshed)

	return nil
}
