package weblogin

import (
	"net/http"

	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/internal/serviceerr"
)

// Policy decides per request whether authentication is required.
type Policy func(*http.Request) bool

// RequireAlways gates every request.
func RequireAlways(*http.Request) bool { return true }

// RequireNever gates nothing; handlers still see the auth context.
func RequireNever(*http.Request) bool { return false }

// RequireIf gates requests matching the predicate.
func RequireIf(pred func(*http.Request) bool) Policy {
	return func(r *http.Request) bool { return pred(r) }
}

func policyFromConfig(cfg *config.Login) Policy {
	if cfg.AuthIsRequired() {
		return RequireAlways
	}

	return RequireNever
}

// reject answers an anonymous request that the policy gated. In
// redirect mode a safe request starts a login round trip back to the
// original URL; anything else gets a plain 401 so no request body is
// lost to a redirect.
func (m *Middleware) reject(w http.ResponseWriter, r *http.Request) {
	redirectable := r.Method == http.MethodGet || r.Method == http.MethodHead

	if m.cfg.UnauthenticatedResponse == config.RespondRedirect && redirectable {
		m.startLogin(w, r, r.URL.RequestURI())
		return
	}

	writeErrorModel(w, string(serviceerr.CodeUnauthorized), "authentication required", http.StatusUnauthorized)
}
