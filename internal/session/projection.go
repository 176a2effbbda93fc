package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/internal/config"
	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/pkg/cookiesign"
)

// maxCookieSize is the usual user agent limit per cookie. Sessions
// beyond it are still written, but the user agent will likely drop
// them.
const maxCookieSize = 4096

// Projection moves the session between requests. In cookie mode the
// whole session travels inside an encrypted cookie; in store mode the
// cookie carries only a signed session ID and the body lives in a
// Store.
type Projection struct {
	codec    *CookieCodec
	store    Store
	secret   []byte
	template config.CookieTemplate
	duration time.Duration
	now      func() time.Time
}

func NewCookieProjection(secret []byte, template config.CookieTemplate, duration time.Duration) (*Projection, error) {
	codec, err := NewCookieCodec(secret)
	if err != nil {
		return nil, err
	}

	return &Projection{
		codec:    codec,
		template: template,
		duration: duration,
		now:      time.Now,
	}, nil
}

func NewStoreProjection(secret []byte, template config.CookieTemplate, duration time.Duration, store Store) (*Projection, error) {
	if len(secret) < 32 {
		return nil, errors.New("session cookie secret must be at least 32 bytes")
	}
	if store == nil {
		return nil, errors.New("store projection needs a store")
	}

	return &Projection{
		store:    store,
		secret:   secret,
		template: template,
		duration: duration,
		now:      time.Now,
	}, nil
}

// Store returns the backing store, nil in cookie mode.
func (p *Projection) Store() Store {
	return p.store
}

// Load reads the session for this request. A missing, unreadable or
// expired session is not an error: the request simply proceeds
// anonymous, and the stale cookie is expired on the response. Errors
// are reserved for a failing backing store.
func (p *Projection) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	ctx := r.Context()

	c, err := r.Cookie(p.template.Name)
	if err != nil {
		return nil, nil
	}

	if p.store == nil {
		s, err := p.codec.Decode(c.Value)
		if err != nil {
			slogctx.Debug(ctx, "Discarding unreadable session cookie", "error", err)
			http.SetCookie(w, p.template.Expired())

			return nil, nil
		}

		return &s, nil
	}

	sessionID, ok := cookiesign.Verify(p.template.Name, c.Value, p.secret)
	if !ok {
		slogctx.Debug(ctx, "Discarding session cookie with a bad signature")
		http.SetCookie(w, p.template.Expired())

		return nil, nil
	}

	s, err := p.store.Load(ctx, sessionID)
	if errors.Is(err, serviceerr.ErrNotFound) {
		http.SetCookie(w, p.template.Expired())

		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session from store: %w", err)
	}

	if s.Expired(p.now()) {
		if err := p.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Could not delete expired session", "error", err)
		}
		http.SetCookie(w, p.template.Expired())

		return nil, nil
	}

	return &s, nil
}

// Save writes the session to the response, filling CreatedAt and
// Expiry when unset. In store mode the session must carry an ID.
func (p *Projection) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = p.now()
	}
	if s.Expiry.IsZero() {
		s.Expiry = s.CreatedAt.Add(p.duration)
	}

	var value string
	if p.store == nil {
		encoded, err := p.codec.Encode(*s)
		if err != nil {
			return err
		}
		value = encoded
	} else {
		if s.ID == "" {
			return errors.New("store-backed sessions need an ID")
		}
		if err := p.store.Save(ctx, *s); err != nil {
			return fmt.Errorf("storing session: %w", err)
		}
		value = cookiesign.Sign(p.template.Name, s.ID, p.secret)
	}

	cookie := p.template.ToCookie(value)
	cookie.MaxAge = int(time.Until(s.Expiry).Seconds())
	p.warnCookieHygiene(ctx, cookie)
	http.SetCookie(w, cookie)

	return nil
}

// Clear expires the cookie and, in store mode, removes the stored
// session.
func (p *Projection) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, p.template.Expired())

	if p.store == nil {
		return nil
	}

	c, err := r.Cookie(p.template.Name)
	if err != nil {
		return nil
	}
	sessionID, ok := cookiesign.Verify(p.template.Name, c.Value, p.secret)
	if !ok {
		return nil
	}

	if err := p.store.Delete(ctx, sessionID); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return fmt.Errorf("deleting session from store: %w", err)
	}

	return nil
}

func (p *Projection) warnCookieHygiene(ctx context.Context, c *http.Cookie) {
	if !strings.HasPrefix(c.Name, "__Host-") && !c.Secure {
		slogctx.Warn(ctx, "Session cookie is not marked as Secure; this is not recommended in production environments")
	}
	if !c.HttpOnly {
		slogctx.Warn(ctx, "Session cookie is not marked as HttpOnly; this is not recommended in production environments")
	}
	if len(c.Value) > maxCookieSize {
		slogctx.Warn(ctx, "Session cookie exceeds the usual user agent size limit", "size", len(c.Value))
	}
}
