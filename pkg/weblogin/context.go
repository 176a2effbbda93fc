package weblogin

import (
	"context"
	"net/http"

	"github.com/openkcm/web-login/internal/session"
)

// Using an unexported type prevents key collisions from other packages.
type contextKey string

const authContextKey contextKey = "authContext"

// AuthContext is what application handlers see of the middleware. It
// is always present on requests that passed through the handler, also
// for anonymous ones.
type AuthContext struct {
	m    *Middleware
	sess *session.Session
}

func withAuthContext(ctx context.Context, a *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, a)
}

// FromContext returns the request's auth context. Requests that never
// passed the middleware get an inert anonymous one.
func FromContext(ctx context.Context) *AuthContext {
	if a, ok := ctx.Value(authContextKey).(*AuthContext); ok {
		return a
	}

	return &AuthContext{}
}

// IsAuthenticated reports whether the request carries a live session.
// It is a pure read with no side effects.
func (a *AuthContext) IsAuthenticated() bool {
	return a.sess != nil
}

// Claims returns the filtered identity claims, nil when anonymous.
func (a *AuthContext) Claims() session.Claims {
	if a.sess == nil {
		return nil
	}

	return a.sess.Claims
}

// Profile decodes the standard claims into a typed view. Anonymous
// requests get a zero profile.
func (a *AuthContext) Profile() (session.Profile, error) {
	if a.sess == nil {
		return session.Profile{}, nil
	}

	return a.sess.Claims.Profile()
}

// Session returns the full session, nil when anonymous.
func (a *AuthContext) Session() *session.Session {
	return a.sess
}

// AccessToken returns the provider access token, "" when anonymous.
func (a *AuthContext) AccessToken() string {
	if a.sess == nil {
		return ""
	}

	return a.sess.AccessToken
}

// Login starts a login round trip ending at returnTo. An empty or
// foreign returnTo falls back to the configured base URL.
func (a *AuthContext) Login(w http.ResponseWriter, r *http.Request, returnTo string) {
	if a.m == nil {
		http.Error(w, "login is not mounted on this request", http.StatusInternalServerError)
		return
	}
	a.m.startLogin(w, r, returnTo)
}

// Logout ends the local session and sends the user agent to the
// provider's logout when it advertises one.
func (a *AuthContext) Logout(w http.ResponseWriter, r *http.Request) {
	if a.m == nil {
		http.Error(w, "logout is not mounted on this request", http.StatusInternalServerError)
		return
	}
	a.m.handleLogout(w, r)
}
