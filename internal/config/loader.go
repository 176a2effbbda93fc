package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// LoadFromFile reads a YAML config file for library embedders that do
// not go through the cobra entrypoint (which uses commoncfg.LoadConfig
// with its search paths instead).
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config file: %w", err)
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults. The
// commoncfg loader applies `default` struct tags on its own; this
// covers configs built directly or loaded via LoadFromFile.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if c.Migrate.Source == "" {
		c.Migrate.Source = "file://./sql"
	}
	if c.TokenRefresher.RefreshInterval == 0 {
		c.TokenRefresher.RefreshInterval = 5 * time.Minute
	}
	if c.TokenRefresher.ExpiryWindow == 0 {
		c.TokenRefresher.ExpiryWindow = 10 * time.Minute
	}

	c.Login.ApplyDefaults()
}

// ApplyDefaults fills zero values of the login section.
func (l *Login) ApplyDefaults() {
	if l.ClientAuth.Type == "" {
		l.ClientAuth.Type = "client_secret"
	}
	if l.Routes.Login == "" {
		l.Routes.Login = "/login"
	}
	if l.Routes.Logout == "" {
		l.Routes.Logout = "/logout"
	}
	if l.Routes.Callback == "" {
		l.Routes.Callback = "/callback"
	}
	if l.Routes.BackchannelLogout == "" {
		l.Routes.BackchannelLogout = "/backchannel-logout"
	}
	if l.Params.ResponseType == "" {
		l.Params.ResponseType = "code"
	}
	if l.Params.ResponseMode == "" {
		l.Params.ResponseMode = "query"
	}
	if l.Params.Scope == "" {
		l.Params.Scope = "openid profile email"
	}
	if l.Session.Store == "" {
		l.Session.Store = StoreCookie
	}
	if l.Session.Duration == 0 {
		l.Session.Duration = 24 * time.Hour
	}
	if l.Session.Cookie.Name == "" {
		l.Session.Cookie.Name = "appSession"
	}
	if l.Session.Cookie.Path == "" {
		l.Session.Cookie.Path = "/"
	}
	if l.Session.Cookie.SameSite == "" {
		l.Session.Cookie.SameSite = CookieSameSiteLax
	}
	if l.AuthRequired == nil {
		authRequired := true
		l.AuthRequired = &authRequired
	}
	if l.UnauthenticatedResponse == "" {
		l.UnauthenticatedResponse = RespondRedirect
	}
	if l.PostLogoutRedirectURL == "" {
		l.PostLogoutRedirectURL = l.BaseURL
	}
	if l.TransientTTL == 0 {
		l.TransientTTL = 10 * time.Minute
	}
}
