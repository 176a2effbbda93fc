package oidc

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	zoidc "github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/openkcm/web-login/internal/serviceerr"
)

const logoutEventName = "http://schemas.openid.net/event/backchannel-logout"

type idTokenChecks struct {
	nonce string

	// enforceNonce requires the nonce claim to match, also when both
	// sides are empty. Tokens from a refresh grant skip this.
	enforceNonce bool

	// accessToken enables the at_hash check when the token carries one.
	accessToken string
}

// verifyIDToken checks signature, issuer, audience and time window and
// returns the full claim set.
func (rp *RelyingParty) verifyIDToken(ctx context.Context, conf *zoidc.DiscoveryConfiguration, raw string, checks idTokenChecks) (map[string]any, error) {
	algs := signatureAlgs(conf.IDTokenSigningAlgValuesSupported)

	token, err := jwt.ParseSigned(raw, algs)
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "parsing id token", err)
	}

	keySet, err := rp.keySet(ctx, conf.JwksURI)
	if err != nil {
		return nil, err
	}

	var standardClaims jwt.Claims
	allClaims := map[string]any{}
	if err := token.Claims(keySet, &standardClaims, &allClaims); err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "verifying id token signature", err)
	}

	err = standardClaims.Validate(jwt.Expected{
		Issuer:      conf.Issuer,
		AnyAudience: jwt.Audience{rp.cfg.ClientAuth.ClientID},
		Time:        rp.now(),
	})
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "validating id token claims", err)
	}

	if len(standardClaims.Audience) > 1 {
		azp, _ := allClaims["azp"].(string)
		if azp != rp.cfg.ClientAuth.ClientID {
			return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "id token with multiple audiences must name this client in azp")
		}
	}

	if checks.enforceNonce {
		nonce, _ := allClaims["nonce"].(string)
		if nonce != checks.nonce {
			return nil, serviceerr.ErrNonceMismatch
		}
	}

	if atHash, ok := allClaims["at_hash"].(string); ok && atHash != "" && checks.accessToken != "" {
		if err := verifyAtHash(checks.accessToken, atHash, token); err != nil {
			return nil, err
		}
	}

	return allClaims, nil
}

func (rp *RelyingParty) VerifyLogoutToken(ctx context.Context, raw string) (*LogoutClaims, error) {
	conf, err := rp.discover(ctx)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseSigned(raw, signatureAlgs(conf.IDTokenSigningAlgValuesSupported))
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "parsing logout token", err)
	}

	keySet, err := rp.keySet(ctx, conf.JwksURI)
	if err != nil {
		return nil, err
	}

	var standardClaims jwt.Claims
	allClaims := map[string]any{}
	if err := token.Claims(keySet, &standardClaims, &allClaims); err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "verifying logout token signature", err)
	}

	err = standardClaims.Validate(jwt.Expected{
		Issuer:      conf.Issuer,
		AnyAudience: jwt.Audience{rp.cfg.ClientAuth.ClientID},
		Time:        rp.now(),
	})
	if err != nil {
		return nil, serviceerr.Wrap(serviceerr.CodeInvalidRequest, "validating logout token claims", err)
	}

	events, ok := allClaims["events"].(map[string]any)
	if !ok {
		return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "logout token has no events claim")
	}
	if _, ok := events[logoutEventName]; !ok {
		return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "logout token does not declare the back-channel logout event")
	}
	if _, ok := allClaims["nonce"]; ok {
		return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "logout token must not contain a nonce")
	}

	sid, _ := allClaims["sid"].(string)
	if standardClaims.Subject == "" && sid == "" {
		return nil, serviceerr.New(serviceerr.CodeInvalidRequest, "logout token names neither a sub nor a sid")
	}

	return &LogoutClaims{
		Issuer:    standardClaims.Issuer,
		Subject:   standardClaims.Subject,
		SessionID: sid,
	}, nil
}

// signatureAlgs maps the advertised signing algorithms, defaulting to
// RS256 when discovery does not list any.
func signatureAlgs(advertised []string) []jose.SignatureAlgorithm {
	algs := make([]jose.SignatureAlgorithm, 0, len(advertised))
	for _, alg := range advertised {
		if alg == "none" {
			continue
		}
		algs = append(algs, jose.SignatureAlgorithm(alg))
	}
	if len(algs) == 0 {
		algs = append(algs, jose.RS256)
	}

	return algs
}

func verifyAtHash(accessToken, atHash string, idToken *jwt.JSONWebToken) error {
	var h hash.Hash
	switch alg := idToken.Headers[0].Algorithm; alg {
	case "RS256", "ES256", "PS256":
		h = sha256.New()
	case "RS384", "ES384", "PS384":
		h = sha512.New384()
	case "RS512", "ES512", "PS512", "EdDSA":
		h = sha512.New()
	default:
		return serviceerr.Newf(serviceerr.CodeInvalidRequest, "unsupported signing algorithm %q", alg)
	}

	h.Write([]byte(accessToken)) // NOSONAR
	sum := h.Sum(nil)[:h.Size()/2]
	actual := base64.RawURLEncoding.EncodeToString(sum)
	if actual != atHash {
		return serviceerr.ErrInvalidAtHash
	}

	return nil
}
