// Package transient stores the short-lived values of one login attempt
// (state, nonce, PKCE verifier, return destination) in signed cookies.
// Each value is readable at most once: GetOnce expires the backing
// cookie no matter whether the surrounding operation succeeds.
//
// Known limitation: two tabs sharing a cookie jar share these cookies,
// so a second /login overwrites the first tab's values and the first
// tab's callback then fails validation. That is inherent to
// one-cookie-per-name storage.
package transient

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/pkg/cookiesign"
)

// legacyPrefix marks the fallback cookie written for user agents that
// drop cookies with SameSite=None.
const legacyPrefix = "_"

type Store struct {
	secret         []byte
	template       config.CookieTemplate
	ttl            time.Duration
	legacyFallback bool
}

// New builds a transient store. The template supplies path, domain,
// secure and same-site attributes; name and value are set per entry.
// The secret must be at least 32 bytes.
func New(secret []byte, template config.CookieTemplate, ttl time.Duration, legacyFallback bool) (*Store, error) {
	if len(secret) < 32 {
		return nil, errors.New("transient cookie secret must be at least 32 bytes")
	}

	return &Store{
		secret:         secret,
		template:       template,
		ttl:            ttl,
		legacyFallback: legacyFallback,
	}, nil
}

// Set writes the signed value under its own cookie. With the legacy
// fallback enabled and a SameSite=None template, a second cookie
// without a SameSite attribute is written alongside.
func (s *Store) Set(w http.ResponseWriter, name, value string) {
	signed := cookiesign.Sign(name, value, s.secret)

	cookie := s.newCookie(name, signed)
	http.SetCookie(w, cookie)

	if s.writesLegacy() {
		legacy := s.newCookie(legacyPrefix+name, cookiesign.Sign(legacyPrefix+name, value, s.secret))
		legacy.SameSite = 0
		http.SetCookie(w, legacy)
	}
}

// GetOnce returns the stored value and consumes it: the backing
// cookie(s) are expired on the response and removed from the request,
// so a second call in this or any later request comes up empty. A
// missing or tampered value yields ok=false; that is not an error at
// this layer, callers decide what it means.
func (s *Store) GetOnce(w http.ResponseWriter, r *http.Request, name string) (value string, ok bool) {
	value, ok = s.consume(w, r, name)

	if s.legacyFallback {
		legacyValue, legacyOK := s.consume(w, r, legacyPrefix+name)
		if !ok {
			value, ok = legacyValue, legacyOK
		}
	}

	return value, ok
}

func (s *Store) consume(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}

	s.expire(w, name)
	removeRequestCookie(r, name)

	return cookiesign.Verify(name, c.Value, s.secret)
}

// removeRequestCookie rewrites the request's Cookie header without the
// named cookie, enforcing the single-use law within one request.
func removeRequestCookie(r *http.Request, name string) {
	cookies := r.Cookies()
	r.Header.Del("Cookie")

	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == name {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}

	if len(parts) > 0 {
		r.Header.Set("Cookie", strings.Join(parts, "; "))
	}
}

func (s *Store) newCookie(name, value string) *http.Cookie {
	c := s.template.ToCookie(value)
	c.Name = name
	c.MaxAge = int(s.ttl.Seconds())
	c.HttpOnly = true

	return c
}

func (s *Store) expire(w http.ResponseWriter, name string) {
	c := s.newCookie(name, "")
	c.MaxAge = -1
	if strings.HasPrefix(name, legacyPrefix) {
		c.SameSite = 0
	}
	http.SetCookie(w, c)
}

func (s *Store) writesLegacy() bool {
	return s.legacyFallback && s.template.SameSite == config.CookieSameSiteNone
}
