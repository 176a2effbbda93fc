// Package oidc talks to the OpenID Connect provider: discovery,
// authorization URL construction, code redemption, token verification
// and logout. The login flow treats it as a black box behind the Client
// interface, so tests can swap in a mock provider.
package oidc

import (
	"context"
	"time"
)

// TokenSet is the verified result of one exchange with the provider.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string

	// Expiry is the access token expiry, zero when the provider did not
	// send expires_in.
	Expiry time.Time

	// Claims is the verified payload of the ID token.
	Claims map[string]any
}

// CallbackParams carries the values the provider sent to the redirect
// URI, independent of whether they arrived as query or form parameters.
type CallbackParams struct {
	State            string
	Code             string
	IDToken          string
	Error            string
	ErrorDescription string
}

// Checks are the per-attempt values bound into the authorization
// request that the response must match.
type Checks struct {
	Nonce        string
	PKCEVerifier string
}

// AuthRequest holds the per-attempt parameters of one authorization
// redirect.
type AuthRequest struct {
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	// Extra overrides or extends the statically configured
	// authorization parameters for this request only.
	Extra map[string]string
}

// LogoutClaims is the verified content of a back-channel logout token.
// At least one of Subject and SessionID is set.
type LogoutClaims struct {
	Issuer    string
	Subject   string
	SessionID string
}

type Client interface {
	// Issuer returns the configured issuer URL.
	Issuer() string

	// AuthorizationURL builds the URL the user agent is redirected to.
	AuthorizationURL(ctx context.Context, req AuthRequest) (string, error)

	// Exchange turns an authorization response into a verified token
	// set. For hybrid responses both the front-channel ID token and the
	// one from the token endpoint are verified; the token endpoint's
	// claims win.
	Exchange(ctx context.Context, cb CallbackParams, checks Checks) (*TokenSet, error)

	// Refresh redeems a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	// EndSessionURL builds the provider's RP-initiated logout URL.
	EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI string) (string, error)

	// VerifyLogoutToken validates a back-channel logout token.
	VerifyLogoutToken(ctx context.Context, raw string) (*LogoutClaims, error)
}
