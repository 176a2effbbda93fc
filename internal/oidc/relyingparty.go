package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/patrickmn/go-cache"

	zclient "github.com/zitadel/oidc/v3/pkg/client"
	zoidc "github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/internal/serviceerr"
)

const (
	authTypeClientSecret = "client_secret"
	authTypeMTLS         = "mtls"
	authTypeNone         = "none"

	discoveryCacheKey = "wkoc"
	jwksCachePrefix   = "jwks_"
)

// RelyingParty implements Client against a single provider. Discovery
// and JWKS responses are cached; construction does not touch the
// network, call Discover once at startup to fail fast on a bad issuer.
type RelyingParty struct {
	cfg          *config.Login
	clientSecret string
	httpClient   *http.Client
	cache        *cache.Cache
	now          func() time.Time
}

func NewRelyingParty(cfg *config.Login, httpClient *http.Client) (*RelyingParty, error) {
	rp := &RelyingParty{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      cache.New(time.Hour, 10*time.Minute),
		now:        time.Now,
	}
	if rp.httpClient == nil {
		rp.httpClient = http.DefaultClient
	}

	switch cfg.ClientAuth.Type {
	case authTypeClientSecret:
		secret, err := commoncfg.LoadValueFromSourceRef(cfg.ClientAuth.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("loading client secret from source ref: %w", err)
		}
		if len(secret) == 0 {
			return nil, errors.New("client auth type client_secret needs a client secret")
		}
		rp.clientSecret = string(secret)
	case authTypeMTLS, authTypeNone:
		// client_id goes into the form body, no shared secret involved
	default:
		return nil, fmt.Errorf("unsupported client auth type: %q", cfg.ClientAuth.Type)
	}

	return rp, nil
}

func (rp *RelyingParty) Issuer() string {
	return rp.cfg.IssuerURL
}

// Discover runs provider discovery eagerly and caches the result.
func (rp *RelyingParty) Discover(ctx context.Context) error {
	_, err := rp.discover(ctx)

	return err
}

func (rp *RelyingParty) discover(ctx context.Context) (*zoidc.DiscoveryConfiguration, error) {
	if cached, ok := rp.cache.Get(discoveryCacheKey); ok {
		//nolint:forcetypeassert
		return cached.(*zoidc.DiscoveryConfiguration), nil
	}

	conf, err := zclient.Discover(ctx, rp.cfg.IssuerURL, rp.httpClient)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeUpstreamUnavailable, "discovering provider configuration", err)
	}
	rp.cache.Set(discoveryCacheKey, conf, 0)

	return conf, nil
}

func (rp *RelyingParty) AuthorizationURL(ctx context.Context, req AuthRequest) (string, error) {
	conf, err := rp.discover(ctx)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(conf.AuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("parsing authorization endpoint url: %w", err)
	}

	q := u.Query()
	q.Set("client_id", rp.cfg.ClientAuth.ClientID)
	q.Set("scope", rp.cfg.Params.Scope)
	q.Set("response_type", rp.cfg.Params.ResponseType)
	q.Set("redirect_uri", rp.cfg.RedirectURI())
	q.Set("state", req.State)
	if rp.cfg.Params.ResponseMode != "query" {
		q.Set("response_mode", rp.cfg.Params.ResponseMode)
	}
	if req.Nonce != "" {
		q.Set("nonce", req.Nonce)
	}
	if req.CodeChallenge != "" {
		q.Set("code_challenge", req.CodeChallenge)
		q.Set("code_challenge_method", req.CodeChallengeMethod)
	}
	for key, value := range rp.cfg.Params.Extra {
		q.Set(key, value)
	}
	for key, value := range req.Extra {
		q.Set(key, value)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (rp *RelyingParty) Exchange(ctx context.Context, cb CallbackParams, checks Checks) (*TokenSet, error) {
	conf, err := rp.discover(ctx)
	if err != nil {
		return nil, err
	}

	set := &TokenSet{}

	if cb.IDToken != "" {
		claims, err := rp.verifyIDToken(ctx, conf, cb.IDToken, idTokenChecks{
			nonce:        checks.Nonce,
			enforceNonce: true,
		})
		if err != nil {
			return nil, err
		}
		set.IDToken = cb.IDToken
		set.Claims = claims
	}

	if cb.Code != "" {
		resp, err := rp.callTokenEndpoint(ctx, conf, url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {cb.Code},
			"redirect_uri":  {rp.cfg.RedirectURI()},
			"code_verifier": {checks.PKCEVerifier},
		})
		if err != nil {
			return nil, err
		}

		set.AccessToken = resp.AccessToken
		set.TokenType = resp.TokenType
		set.RefreshToken = resp.RefreshToken
		if resp.ExpiresIn > 0 {
			set.Expiry = rp.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		}

		if resp.IDToken != "" {
			claims, err := rp.verifyIDToken(ctx, conf, resp.IDToken, idTokenChecks{
				nonce:        checks.Nonce,
				enforceNonce: true,
				accessToken:  resp.AccessToken,
			})
			if err != nil {
				return nil, err
			}
			// The token endpoint response is authoritative over the
			// front-channel ID token of a hybrid response.
			set.IDToken = resp.IDToken
			set.Claims = claims
		}
	}

	if set.Claims == nil {
		return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "authorization response carried neither a code nor an id_token")
	}

	return set, nil
}

func (rp *RelyingParty) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	conf, err := rp.discover(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := rp.callTokenEndpoint(ctx, conf, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return nil, err
	}

	set := &TokenSet{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
	}
	if set.RefreshToken == "" {
		// providers may rotate or keep the refresh token
		set.RefreshToken = refreshToken
	}
	if resp.ExpiresIn > 0 {
		set.Expiry = rp.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	if resp.IDToken != "" {
		claims, err := rp.verifyIDToken(ctx, conf, resp.IDToken, idTokenChecks{
			accessToken: resp.AccessToken,
		})
		if err != nil {
			return nil, err
		}
		set.IDToken = resp.IDToken
		set.Claims = claims
	}

	return set, nil
}

func (rp *RelyingParty) EndSessionURL(ctx context.Context, idTokenHint, postLogoutRedirectURI string) (string, error) {
	conf, err := rp.discover(ctx)
	if err != nil {
		return "", err
	}
	if conf.EndSessionEndpoint == "" {
		return "", serviceerr.New(serviceerr.CodeNotFound, "provider does not advertise an end_session_endpoint")
	}

	u, err := url.Parse(conf.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("parsing end session endpoint url: %w", err)
	}

	q := u.Query()
	q.Set("client_id", rp.cfg.ClientAuth.ClientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if postLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// callTokenEndpoint posts the form to the token endpoint with the
// configured client authentication and decodes the token response.
func (rp *RelyingParty) callTokenEndpoint(ctx context.Context, conf *zoidc.DiscoveryConfiguration, data url.Values) (*zoidc.AccessTokenResponse, error) {
	if rp.cfg.ClientAuth.Type != authTypeClientSecret {
		data.Set("client_id", rp.cfg.ClientAuth.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rp.cfg.ClientAuth.Type == authTypeClientSecret {
		req.SetBasicAuth(url.QueryEscape(rp.cfg.ClientAuth.ClientID), url.QueryEscape(rp.clientSecret))
	}

	resp, err := rp.httpClient.Do(req)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeUpstreamUnavailable, "calling token endpoint", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, serviceerr.Newf(serviceerr.CodeUpstreamUnavailable, "token endpoint answered with status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		var tokenErr zoidc.Error
		if err := json.NewDecoder(resp.Body).Decode(&tokenErr); err != nil || tokenErr.ErrorType == "" {
			return nil, serviceerr.Newf(serviceerr.CodeExchangeRejected, "token endpoint answered with status %d", resp.StatusCode)
		}

		return nil, serviceerr.Newf(serviceerr.CodeExchangeRejected, "token endpoint rejected the request: %s", tokenErr.ErrorType)
	}

	var tokens zoidc.AccessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeUpstreamUnavailable, "decoding token response", err)
	}

	return &tokens, nil
}

// keySet fetches the provider's JWKS, reusing a cached copy.
func (rp *RelyingParty) keySet(ctx context.Context, jwksURI string) (*jose.JSONWebKeySet, error) {
	cacheKey := jwksCachePrefix + jwksURI
	if cached, ok := rp.cache.Get(cacheKey); ok {
		//nolint:forcetypeassert
		return cached.(*jose.JSONWebKeySet), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("creating jwks request: %w", err)
	}

	resp, err := rp.httpClient.Do(req)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeUpstreamUnavailable, "fetching jwks", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serviceerr.Newf(serviceerr.CodeUpstreamUnavailable, "jwks endpoint answered with status %d", resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeUpstreamUnavailable, "decoding jwks response", err)
	}
	rp.cache.Set(cacheKey, &keySet, 0)

	return &keySet, nil
}
