// Package session holds the authenticated state of one user agent and
// the projection that moves it between requests, either inside an
// encrypted cookie or in an external store keyed by a signed cookie.
package session

import "time"

// Claims is the filtered identity claim set of a session.
type Claims map[string]any

// String returns the named claim when it is a string, otherwise "".
func (c Claims) String(name string) string {
	v, _ := c[name].(string)

	return v
}

func (c Claims) Subject() string { return c.String("sub") }
func (c Claims) Email() string   { return c.String("email") }

type Session struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`

	// ProviderSessionID is the provider's sid claim, kept for
	// back-channel logout matching. It is not part of Claims.
	ProviderSessionID string `json:"providerSessionID,omitempty"`

	Claims Claims `json:"claims"`

	AccessToken  string `json:"accessToken,omitempty"`
	TokenType    string `json:"tokenType,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken,omitempty"`

	// TokenExpiry is the access token expiry, zero when unknown.
	TokenExpiry time.Time `json:"tokenExpiry"`

	// Expiry ends the session regardless of token state.
	Expiry    time.Time `json:"expiry"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && now.After(s.Expiry)
}

// TokenExpiring reports whether the access token runs out within the
// window. Sessions without a refresh token never report true.
func (s Session) TokenExpiring(now time.Time, window time.Duration) bool {
	if s.RefreshToken == "" || s.TokenExpiry.IsZero() {
		return false
	}

	return s.TokenExpiry.Sub(now) < window
}
