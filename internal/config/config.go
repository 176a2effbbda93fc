// Package config defines the necessary types to configure the
// application. An example config file config.yaml is provided in the
// repository.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Database       Database       `yaml:"database"`
	ValKey         ValKey         `yaml:"valkey"`
	Migrate        Migrate        `yaml:"migrate"`
	Login          Login          `yaml:"login"`
	TokenRefresher TokenRefresher `yaml:"tokenRefresher"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host      commoncfg.SourceRef `yaml:"host"`
	User      commoncfg.SourceRef `yaml:"user"`
	Password  commoncfg.SourceRef `yaml:"password"`
	Prefix    string              `yaml:"prefix"`
	SecretRef SecretRef           `yaml:"secretRef"`
}

type SecretRef struct {
	Type commoncfg.SecretType `yaml:"type"`
	MTLS commoncfg.MTLS       `yaml:"mtls"`
}

type Migrate struct {
	Source string `yaml:"source" default:"file://./sql"`
}

type TokenRefresher struct {
	RefreshInterval time.Duration `yaml:"refreshInterval" default:"5m"`
	ExpiryWindow    time.Duration `yaml:"expiryWindow" default:"10m"`
}

// Login configures the relying-party login flow.
type Login struct {
	// IssuerURL is the OpenID Connect issuer. Discovery runs against
	// it once at startup; a failure there is fatal.
	IssuerURL string `yaml:"issuerURL"`

	// BaseURL is the externally visible URL of this application. It is
	// the default post-login destination and the base for the redirect
	// URI.
	BaseURL string `yaml:"baseURL"`

	ClientAuth ClientAuth          `yaml:"clientAuth"`
	Routes     Routes              `yaml:"routes"`
	Params     AuthorizationParams `yaml:"authorizationParams"`

	// Secret signs transient cookies and encrypts the session cookie.
	// Must resolve to at least 32 bytes.
	Secret       commoncfg.SourceRef `yaml:"secret"`
	SecretParsed []byte              `yaml:"-" json:"-"`

	Session Session `yaml:"session"`

	// ExcludedClaims are removed from the identity claims before they
	// are persisted into the session.
	ExcludedClaims []string `yaml:"excludedClaims"`

	// LegacySameSiteCookie writes a fallback cookie without a SameSite
	// attribute for user agents that mishandle SameSite=None.
	LegacySameSiteCookie bool `yaml:"legacySameSiteCookie"`

	// AuthRequired gates every request passing through the middleware.
	// A pointer so that an absent key defaults to true on every load
	// path. Fine-grained policies are set programmatically.
	AuthRequired *bool `yaml:"authRequired" default:"true"`

	// UnauthenticatedResponse selects how the access gate rejects:
	// "redirect" starts a login round trip, "status" answers 401.
	UnauthenticatedResponse string `yaml:"unauthenticatedResponse" default:"redirect"`

	PostLogoutRedirectURL string `yaml:"postLogoutRedirectURL"`

	// TransientTTL bounds how long a login attempt may take.
	TransientTTL time.Duration `yaml:"transientTTL" default:"10m"`
}

type ClientAuth struct {
	Type         string              `yaml:"type" default:"client_secret"`
	ClientID     string              `yaml:"clientID"`
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`
	MTLS         *commoncfg.MTLS     `yaml:"mtls"`
}

type Routes struct {
	Login             string `yaml:"login" default:"/login"`
	Logout            string `yaml:"logout" default:"/logout"`
	Callback          string `yaml:"callback" default:"/callback"`
	BackchannelLogout string `yaml:"backchannelLogout" default:"/backchannel-logout"`
}

type AuthorizationParams struct {
	ResponseType string            `yaml:"responseType" default:"code"`
	ResponseMode string            `yaml:"responseMode" default:"query"`
	Scope        string            `yaml:"scope" default:"openid profile email"`
	Extra        map[string]string `yaml:"extra"`
}

// UsesNonce reports whether the configured response type carries an ID
// token in the authorization response or via the token endpoint, which
// is when a nonce must be bound into the request.
func (p AuthorizationParams) UsesNonce() bool {
	return slices.Contains(strings.Fields(p.ResponseType), "id_token") || p.ResponseType == "code"
}

// UsesCode reports whether the flow redeems an authorization code.
func (p AuthorizationParams) UsesCode() bool {
	return slices.Contains(strings.Fields(p.ResponseType), "code")
}

type Session struct {
	// Store selects where session claims live: "cookie" keeps an
	// encrypted projection on the client, the others keep it server
	// side keyed by a signed session ID cookie.
	Store    string         `yaml:"store" default:"cookie"`
	Duration time.Duration  `yaml:"duration" default:"24h"`
	Cookie   CookieTemplate `yaml:"cookie"`
}

const (
	StoreCookie   = "cookie"
	StoreMemory   = "memory"
	StoreValKey   = "valkey"
	StorePostgres = "postgres"
)

const (
	RespondRedirect = "redirect"
	RespondStatus   = "status"
)

// ParseSecret resolves the configured secret source and enforces the
// minimum length. Call it once before handing the config to the
// middleware.
func (l *Login) ParseSecret() error {
	secret, err := commoncfg.LoadValueFromSourceRef(l.Secret)
	if err != nil {
		return fmt.Errorf("loading login secret from source ref: %w", err)
	}
	if len(secret) < 32 {
		return errors.New("login secret must be at least 32 bytes")
	}

	l.SecretParsed = []byte(secret)

	return nil
}

// Validate checks the parts of the login config that would otherwise
// fail at the first request instead of at startup.
func (l *Login) Validate() error {
	if l.IssuerURL == "" {
		return errors.New("login.issuerURL is required")
	}
	if l.ClientAuth.ClientID == "" {
		return errors.New("login.clientAuth.clientID is required")
	}

	base, err := url.Parse(l.BaseURL)
	if err != nil || !base.IsAbs() {
		return fmt.Errorf("login.baseURL must be an absolute URL: %q", l.BaseURL)
	}

	switch l.Session.Store {
	case StoreCookie, StoreMemory, StoreValKey, StorePostgres:
	default:
		return fmt.Errorf("login.session.store must be one of cookie, memory, valkey, postgres: %q", l.Session.Store)
	}

	switch l.UnauthenticatedResponse {
	case RespondRedirect, RespondStatus:
	default:
		return fmt.Errorf("login.unauthenticatedResponse must be redirect or status: %q", l.UnauthenticatedResponse)
	}

	switch l.Params.ResponseMode {
	case "query", "form_post":
	default:
		return fmt.Errorf("login.authorizationParams.responseMode must be query or form_post: %q", l.Params.ResponseMode)
	}

	switch l.Params.ResponseType {
	case "code", "id_token", "code id_token":
	default:
		return fmt.Errorf("unsupported login.authorizationParams.responseType: %q", l.Params.ResponseType)
	}

	if l.Params.ResponseType != "code" && l.Params.ResponseMode != "form_post" {
		return errors.New("response types carrying tokens require responseMode form_post")
	}

	for _, route := range []string{l.Routes.Login, l.Routes.Logout, l.Routes.Callback, l.Routes.BackchannelLogout} {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("login route paths must start with /: %q", route)
		}
	}
	if l.Routes.Login == l.Routes.Callback {
		return errors.New("login and callback routes must differ")
	}

	return nil
}

// AuthIsRequired reports the effective access-gate default, true when
// the config never mentions authRequired.
func (l *Login) AuthIsRequired() bool {
	return l.AuthRequired == nil || *l.AuthRequired
}

// RedirectURI is the absolute callback URL registered at the provider.
func (l *Login) RedirectURI() string {
	return strings.TrimSuffix(l.BaseURL, "/") + l.Routes.Callback
}
