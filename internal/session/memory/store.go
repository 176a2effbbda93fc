// Package sessionmemory keeps sessions in process memory. Suitable for
// single-instance deployments and tests; a restart logs everyone out.
package sessionmemory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
)

type Store struct {
	cache *cache.Cache
}

var _ = session.Store(&Store{})

func NewStore() *Store {
	return &Store{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (s *Store) Load(_ context.Context, sessionID string) (session.Session, error) {
	v, ok := s.cache.Get(sessionID)
	if !ok {
		return session.Session{}, serviceerr.ErrNotFound
	}

	//nolint:forcetypeassert
	return v.(session.Session), nil
}

func (s *Store) Save(_ context.Context, sess session.Session) error {
	// go-cache treats a non-positive TTL as "never expires", which would
	// pin an already-expired session forever.
	ttl := time.Until(sess.Expiry)
	if ttl <= 0 {
		s.cache.Delete(sess.ID)

		return nil
	}

	s.cache.Set(sess.ID, sess, ttl)

	return nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	if _, ok := s.cache.Get(sessionID); !ok {
		return serviceerr.ErrNotFound
	}
	s.cache.Delete(sessionID)

	return nil
}

func (s *Store) DeleteByProviderSessionID(_ context.Context, providerSessionID string) error {
	for id, item := range s.cache.Items() {
		//nolint:forcetypeassert
		if item.Object.(session.Session).ProviderSessionID == providerSessionID {
			s.cache.Delete(id)
		}
	}

	return nil
}

func (s *Store) DeleteBySubject(_ context.Context, subject string) error {
	for id, item := range s.cache.Items() {
		//nolint:forcetypeassert
		if item.Object.(session.Session).Subject == subject {
			s.cache.Delete(id)
		}
	}

	return nil
}

func (s *Store) List(_ context.Context) ([]session.Session, error) {
	items := s.cache.Items()
	sessions := make([]session.Session, 0, len(items))
	for _, item := range items {
		//nolint:forcetypeassert
		sessions = append(sessions, item.Object.(session.Session))
	}

	return sessions, nil
}
