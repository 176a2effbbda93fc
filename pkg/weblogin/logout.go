package weblogin

import (
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/internal/serviceerr"
)

// handleLogout ends the local session and, when the provider
// advertises an end session endpoint, sends the user agent there so
// the provider session ends too.
func (m *Middleware) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, err := m.projection.Load(w, r)
	if err != nil {
		m.respondError(w, r, serviceerr.Wrap(serviceerr.CodeUnknown, "loading session", err))
		return
	}

	if err := m.projection.Clear(ctx, w, r); err != nil {
		m.respondError(w, r, serviceerr.Wrap(serviceerr.CodeUnknown, "clearing session", err))
		return
	}

	destination := m.cfg.PostLogoutRedirectURL

	if sess != nil {
		endSession, err := m.client.EndSessionURL(ctx, sess.IDToken, m.cfg.PostLogoutRedirectURL)
		switch {
		case errors.Is(err, serviceerr.ErrNotFound):
			slogctx.Debug(ctx, "Provider has no end session endpoint, local logout only")
		case err != nil:
			m.respondError(w, r, err)
			return
		default:
			destination = endSession
		}

		slogctx.Info(ctx, "Logged out", "subject", sess.Subject)
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

// handleBackchannelLogout consumes a provider-initiated logout token
// and drops the matching sessions from the store. Cookie-mode sessions
// cannot be revoked server side, so the route answers 501 there.
func (m *Middleware) handleBackchannelLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		m.respondError(w, r, serviceerr.New(serviceerr.CodeInvalidRequest, "back-channel logout must arrive as POST"))
		return
	}

	if m.store == nil {
		writeErrorModel(w, string(serviceerr.CodeInvalidRequest),
			"back-channel logout needs a server side session store", http.StatusNotImplemented)
		return
	}

	if err := r.ParseForm(); err != nil {
		m.respondError(w, r, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "parsing logout form", err))
		return
	}

	raw := r.PostForm.Get(backchannelTokenParam)
	if raw == "" {
		m.respondError(w, r, serviceerr.New(serviceerr.CodeInvalidRequest, "missing logout_token"))
		return
	}

	claims, err := m.client.VerifyLogoutToken(ctx, raw)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	if claims.SessionID != "" {
		err = m.store.DeleteByProviderSessionID(ctx, claims.SessionID)
	} else {
		err = m.store.DeleteBySubject(ctx, claims.Subject)
	}
	if err != nil {
		m.respondError(w, r, serviceerr.Wrap(serviceerr.CodeUnknown, "dropping sessions", err))
		return
	}

	slogctx.Info(ctx, "Back-channel logout processed", "sid", claims.SessionID, "subject", claims.Subject)

	// https://openid.net/specs/openid-connect-backchannel-1_0.html#BCResponse
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}
