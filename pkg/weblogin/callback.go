package weblogin

import (
	"mime"
	"net/http"
	"slices"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/internal/oidc"
	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
)

func (m *Middleware) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, parseErr := m.parseCallback(r)

	// The attempt's cookies are consumed up front, whatever happens
	// next: a failed callback must not leave replayable state behind.
	state, stateOK := m.transient.GetOnce(w, r, transientState)
	nonce, _ := m.transient.GetOnce(w, r, transientNonce)
	verifier, _ := m.transient.GetOnce(w, r, transientVerifier)
	returnTo, returnOK := m.transient.GetOnce(w, r, transientReturnTo)
	if !returnOK {
		returnTo = m.cfg.BaseURL
	}

	switch {
	case parseErr != nil:
		m.respondError(w, r, parseErr)
		return
	case params.Error != "":
		m.respondError(w, r, serviceerr.Newf(serviceerr.CodeExchangeRejected,
			"provider returned an error: %s", params.Error))
		return
	case !stateOK:
		m.respondError(w, r, serviceerr.ErrStateMissing)
		return
	case params.State != state:
		m.respondError(w, r, serviceerr.ErrStateMismatch)
		return
	}

	tokens, err := m.client.Exchange(ctx, params, oidc.Checks{
		Nonce:        nonce,
		PKCEVerifier: verifier,
	})
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	sess := m.buildSession(tokens)

	if m.interceptor != nil {
		var calls int
		var final *session.Session
		m.interceptor(w, r, sess, func(s *session.Session) {
			calls++
			final = s
		})

		if calls != 1 {
			m.respondError(w, r, serviceerr.Newf(serviceerr.CodeInterceptorViolation,
				"interceptor called complete %d times", calls))
			return
		}
		if final == nil {
			// the interceptor answered the request itself
			return
		}
		sess = final
	}

	if err := m.projection.Save(ctx, w, sess); err != nil {
		m.respondError(w, r, serviceerr.Wrap(serviceerr.CodeUnknown, "persisting session", err))
		return
	}

	slogctx.Info(ctx, "Login completed", "subject", sess.Subject)
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// parseCallback validates the transport against the configured
// response mode and lifts the provider's values out of it.
func (m *Middleware) parseCallback(r *http.Request) (oidc.CallbackParams, error) {
	values := r.URL.Query()

	switch m.cfg.Params.ResponseMode {
	case "form_post":
		if r.Method != http.MethodPost {
			return oidc.CallbackParams{}, serviceerr.New(serviceerr.CodeInvalidRequest,
				"form_post callbacks must arrive as POST")
		}
		if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || ct != "application/x-www-form-urlencoded" {
			return oidc.CallbackParams{}, serviceerr.New(serviceerr.CodeInvalidRequest,
				"form_post callbacks must be form encoded")
		}
		if err := r.ParseForm(); err != nil {
			return oidc.CallbackParams{}, serviceerr.Wrap(serviceerr.CodeInvalidRequest,
				"parsing callback form", err)
		}
		values = r.PostForm
	default:
		if r.Method != http.MethodGet {
			return oidc.CallbackParams{}, serviceerr.New(serviceerr.CodeInvalidRequest,
				"query callbacks must arrive as GET")
		}
	}

	return oidc.CallbackParams{
		State:            values.Get("state"),
		Code:             values.Get("code"),
		IDToken:          values.Get("id_token"),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}, nil
}

// buildSession turns a verified token set into a session with the
// claim filter applied. The provider's sid claim never reaches the
// visible claims but is kept for back-channel logout.
func (m *Middleware) buildSession(tokens *oidc.TokenSet) *session.Session {
	sub, _ := tokens.Claims["sub"].(string)
	sid, _ := tokens.Claims["sid"].(string)

	claims := make(session.Claims, len(tokens.Claims))
	for name, value := range tokens.Claims {
		if name == "sid" || slices.Contains(m.cfg.ExcludedClaims, name) {
			continue
		}
		claims[name] = value
	}

	now := time.Now()

	return &session.Session{
		ID:                m.ids.SessionID(),
		Subject:           sub,
		ProviderSessionID: sid,
		Claims:            claims,
		AccessToken:       tokens.AccessToken,
		TokenType:         tokens.TokenType,
		RefreshToken:      tokens.RefreshToken,
		IDToken:           tokens.IDToken,
		TokenExpiry:       tokens.Expiry,
		CreatedAt:         now,
		Expiry:            now.Add(m.cfg.Session.Duration),
	}
}
