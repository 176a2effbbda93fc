package oidcmock

import (
	"context"

	"github.com/openkcm/web-login/internal/oidc"
	"github.com/openkcm/web-login/internal/serviceerr"
)

type ClientOption func(*Client)

// Client is a canned provider for handler tests. The Last* fields
// capture the most recent call for assertions.
type Client struct {
	issuer           string
	authorizationURL string
	endSessionURL    string
	tokens           *oidc.TokenSet
	refreshed        *oidc.TokenSet
	logoutClaims     *oidc.LogoutClaims

	authURLErr, exchangeErr, refreshErr, endSessionErr, verifyLogoutErr error

	LastAuthRequest oidc.AuthRequest
	LastCallback    oidc.CallbackParams
	LastChecks      oidc.Checks
	ExchangeCalls   int
}

func WithIssuer(issuer string) ClientOption {
	return func(c *Client) { c.issuer = issuer }
}
func WithAuthorizationURL(u string) ClientOption {
	return func(c *Client) { c.authorizationURL = u }
}
func WithAuthorizationURLError(err error) ClientOption {
	return func(c *Client) { c.authURLErr = err }
}
func WithTokens(set *oidc.TokenSet) ClientOption {
	return func(c *Client) { c.tokens = set }
}
func WithExchangeError(err error) ClientOption {
	return func(c *Client) { c.exchangeErr = err }
}
func WithRefreshedTokens(set *oidc.TokenSet) ClientOption {
	return func(c *Client) { c.refreshed = set }
}
func WithRefreshError(err error) ClientOption {
	return func(c *Client) { c.refreshErr = err }
}
func WithEndSessionURL(u string) ClientOption {
	return func(c *Client) { c.endSessionURL = u }
}
func WithEndSessionError(err error) ClientOption {
	return func(c *Client) { c.endSessionErr = err }
}
func WithLogoutClaims(claims *oidc.LogoutClaims) ClientOption {
	return func(c *Client) { c.logoutClaims = claims }
}
func WithVerifyLogoutError(err error) ClientOption {
	return func(c *Client) { c.verifyLogoutErr = err }
}

var _ = oidc.Client(&Client{})

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		issuer:           "https://idp.example.com",
		authorizationURL: "https://idp.example.com/authorize",
		endSessionURL:    "https://idp.example.com/logout",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

func (c *Client) Issuer() string {
	return c.issuer
}

func (c *Client) AuthorizationURL(_ context.Context, req oidc.AuthRequest) (string, error) {
	c.LastAuthRequest = req
	if c.authURLErr != nil {
		return "", c.authURLErr
	}

	return c.authorizationURL, nil
}

func (c *Client) Exchange(_ context.Context, cb oidc.CallbackParams, checks oidc.Checks) (*oidc.TokenSet, error) {
	c.ExchangeCalls++
	c.LastCallback = cb
	c.LastChecks = checks
	if c.exchangeErr != nil {
		return nil, c.exchangeErr
	}
	if c.tokens == nil {
		return nil, serviceerr.ErrUnknown
	}

	return c.tokens, nil
}

func (c *Client) Refresh(_ context.Context, _ string) (*oidc.TokenSet, error) {
	if c.refreshErr != nil {
		return nil, c.refreshErr
	}
	if c.refreshed == nil {
		return nil, serviceerr.ErrUnknown
	}

	return c.refreshed, nil
}

func (c *Client) EndSessionURL(_ context.Context, _, _ string) (string, error) {
	if c.endSessionErr != nil {
		return "", c.endSessionErr
	}

	return c.endSessionURL, nil
}

func (c *Client) VerifyLogoutToken(_ context.Context, _ string) (*oidc.LogoutClaims, error) {
	if c.verifyLogoutErr != nil {
		return nil, c.verifyLogoutErr
	}
	if c.logoutClaims == nil {
		return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "no logout claims configured")
	}

	return c.logoutClaims, nil
}
