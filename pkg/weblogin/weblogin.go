// Package weblogin is an HTTP middleware that turns an application into
// an OpenID Connect relying party: it mounts the login, callback and
// logout routes, keeps the session across requests and gates access to
// everything behind it.
package weblogin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/internal/oidc"
	"github.com/openkcm/web-login/internal/pkce"
	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
	sessionmemory "github.com/openkcm/web-login/internal/session/memory"
	"github.com/openkcm/web-login/internal/transient"
)

const (
	transientState        = "auth_state"
	transientNonce        = "auth_nonce"
	transientVerifier     = "auth_verifier"
	transientReturnTo     = "auth_return_to"
	backchannelTokenParam = "logout_token"
)

// Interceptor runs after a successful token exchange and before the
// session is persisted. It must call complete exactly once: with the
// (possibly modified) session to continue the flow, or with nil when it
// has written the response itself. Anything else is a programming
// error answered with a 500.
type Interceptor func(w http.ResponseWriter, r *http.Request, s *session.Session, complete func(*session.Session))

type Option func(*Middleware)

// WithSessionStore backs the session projection with an external
// store. Required for the valkey and postgres store settings.
func WithSessionStore(store session.Store) Option {
	return func(m *Middleware) { m.store = store }
}

// WithAccessPolicy replaces the config-derived all-or-nothing policy.
func WithAccessPolicy(policy Policy) Option {
	return func(m *Middleware) { m.policy = policy }
}

// WithInterceptor installs the post-callback extension point.
func WithInterceptor(i Interceptor) Option {
	return func(m *Middleware) { m.interceptor = i }
}

type Middleware struct {
	cfg         *config.Login
	client      oidc.Client
	transient   *transient.Store
	projection  *session.Projection
	ids         pkce.Source
	policy      Policy
	interceptor Interceptor

	store session.Store
}

// New wires the middleware from a validated config and a provider
// client. Misconfiguration is fatal here, never at the first request.
func New(cfg *config.Login, client oidc.Client, opts ...Option) (*Middleware, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating login config: %w", err)
	}
	if len(cfg.SecretParsed) == 0 {
		if err := cfg.ParseSecret(); err != nil {
			return nil, err
		}
	}
	if client == nil {
		return nil, errors.New("weblogin needs a provider client")
	}

	m := &Middleware{
		cfg:    cfg,
		client: client,
		policy: policyFromConfig(cfg),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	ts, err := transient.New(cfg.SecretParsed, transientTemplate(cfg), cfg.TransientTTL, cfg.LegacySameSiteCookie)
	if err != nil {
		return nil, err
	}
	m.transient = ts

	if err := m.buildProjection(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Middleware) buildProjection() error {
	switch {
	case m.store == nil && m.cfg.Session.Store == config.StoreMemory:
		m.store = sessionmemory.NewStore()
	case m.store == nil && m.cfg.Session.Store != config.StoreCookie:
		return fmt.Errorf("session store %q needs WithSessionStore", m.cfg.Session.Store)
	}

	var err error
	if m.store == nil {
		m.projection, err = session.NewCookieProjection(m.cfg.SecretParsed, m.cfg.Session.Cookie, m.cfg.Session.Duration)
	} else {
		m.projection, err = session.NewStoreProjection(m.cfg.SecretParsed, m.cfg.Session.Cookie, m.cfg.Session.Duration, m.store)
	}

	return err
}

// transientTemplate derives the login-attempt cookie attributes from
// the session cookie. form_post responses arrive as a cross-site POST,
// which needs SameSite=None for the cookies to travel along.
func transientTemplate(cfg *config.Login) config.CookieTemplate {
	template := cfg.Session.Cookie
	template.Name = ""
	template.SameSite = config.CookieSameSiteLax
	if cfg.Params.ResponseMode == "form_post" {
		template.SameSite = config.CookieSameSiteNone
	}

	return template
}

// Handler mounts the auth routes and gates everything else.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case m.cfg.Routes.Login:
			m.handleLogin(w, r)
			return
		case m.cfg.Routes.Callback:
			m.handleCallback(w, r)
			return
		case m.cfg.Routes.Logout:
			m.handleLogout(w, r)
			return
		case m.cfg.Routes.BackchannelLogout:
			m.handleBackchannelLogout(w, r)
			return
		}

		sess, err := m.projection.Load(w, r)
		if err != nil {
			m.respondError(w, r, serviceerr.Wrap(serviceerr.CodeUnknown, "loading session", err))
			return
		}

		r = r.WithContext(withAuthContext(r.Context(), &AuthContext{m: m, sess: sess}))

		if sess == nil && m.policy(r) {
			m.reject(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionStore returns the backing store, nil in cookie mode. The
// token refresher and operational tooling go through it.
func (m *Middleware) SessionStore() session.Store {
	return m.store
}

// Client returns the provider client the middleware was built with.
func (m *Middleware) Client() oidc.Client {
	return m.client
}

func (m *Middleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var serviceErr *serviceerr.Error
	if !errors.As(err, &serviceErr) {
		serviceErr = serviceerr.ErrUnknown
	}

	status := serviceErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slogctx.Error(r.Context(), "Login flow failed", "error", err)
	} else {
		slogctx.Warn(r.Context(), "Rejecting login flow request", "error", err, "status", status)
	}

	writeErrorModel(w, string(serviceErr.Err), serviceErr.Description, status)
}

func writeErrorModel(w http.ResponseWriter, code, description string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}
