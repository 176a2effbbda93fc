package weblogin

import (
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/internal/oidc"
	"github.com/openkcm/web-login/internal/serviceerr"
)

func (m *Middleware) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		m.respondError(w, r, serviceerr.New(serviceerr.CodeInvalidRequest, "login only answers GET"))
		return
	}

	m.startLogin(w, r, r.URL.Query().Get("returnTo"))
}

// startLogin stores the per-attempt values in transient cookies and
// redirects to the provider. A repeated login overwrites the previous
// attempt's cookies: one attempt per cookie jar.
func (m *Middleware) startLogin(w http.ResponseWriter, r *http.Request, returnTo string) {
	ctx := r.Context()

	req := oidc.AuthRequest{State: m.ids.State()}
	if m.cfg.Params.UsesNonce() {
		req.Nonce = m.ids.Nonce()
	}

	var verifier string
	if m.cfg.Params.UsesCode() {
		p := m.ids.PKCE()
		verifier = p.Verifier
		req.CodeChallenge = p.Challenge
		req.CodeChallengeMethod = p.Method
	}

	authURL, err := m.client.AuthorizationURL(ctx, req)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	m.transient.Set(w, transientState, req.State)
	if req.Nonce != "" {
		m.transient.Set(w, transientNonce, req.Nonce)
	}
	if verifier != "" {
		m.transient.Set(w, transientVerifier, verifier)
	}
	m.transient.Set(w, transientReturnTo, m.safeReturnTo(returnTo))

	slogctx.Debug(ctx, "Redirecting to the authorization endpoint")
	http.Redirect(w, r, authURL, http.StatusFound)
}

// safeReturnTo keeps post-login destinations on our own origin: a
// relative path, or an absolute URL sharing the base URL's scheme and
// host. Everything else falls back to the base URL, closing the open
// redirect.
func (m *Middleware) safeReturnTo(returnTo string) string {
	if returnTo == "" {
		return m.cfg.BaseURL
	}

	u, err := url.Parse(returnTo)
	if err != nil {
		return m.cfg.BaseURL
	}

	if !u.IsAbs() && u.Host == "" {
		if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(returnTo, "//") {
			return m.cfg.BaseURL
		}

		return strings.TrimSuffix(m.cfg.BaseURL, "/") + u.RequestURI()
	}

	base, err := url.Parse(m.cfg.BaseURL)
	if err != nil || u.Scheme != base.Scheme || u.Host != base.Host {
		return m.cfg.BaseURL
	}

	return returnTo
}
