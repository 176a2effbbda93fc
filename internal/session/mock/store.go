package sessionmock

import (
	"context"

	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
)

type StoreOption func(*Store)

// Store is an in-memory session.Store for tests, with injectable
// errors per operation.
type Store struct {
	sessions map[string]session.Session

	loadErr, saveErr, deleteErr, listErr error
}

func WithSession(sess session.Session) StoreOption {
	return func(s *Store) { s.sessions[sess.ID] = sess }
}
func WithLoadError(err error) StoreOption {
	return func(s *Store) { s.loadErr = err }
}
func WithSaveError(err error) StoreOption {
	return func(s *Store) { s.saveErr = err }
}
func WithDeleteError(err error) StoreOption {
	return func(s *Store) { s.deleteErr = err }
}
func WithListError(err error) StoreOption {
	return func(s *Store) { s.listErr = err }
}

var _ = session.Store(&Store{})

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]session.Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Len reports how many sessions are stored.
func (s *Store) Len() int {
	return len(s.sessions)
}

func (s *Store) Load(_ context.Context, sessionID string) (session.Session, error) {
	if s.loadErr != nil {
		return session.Session{}, s.loadErr
	}
	if sess, ok := s.sessions[sessionID]; ok {
		return sess, nil
	}

	return session.Session{}, serviceerr.ErrNotFound
}

func (s *Store) Save(_ context.Context, sess session.Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[sess.ID] = sess

	return nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.sessions[sessionID]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(s.sessions, sessionID)

	return nil
}

func (s *Store) DeleteByProviderSessionID(_ context.Context, providerSessionID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for id, sess := range s.sessions {
		if sess.ProviderSessionID == providerSessionID {
			delete(s.sessions, id)
		}
	}

	return nil
}

func (s *Store) DeleteBySubject(_ context.Context, subject string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for id, sess := range s.sessions {
		if sess.Subject == subject {
			delete(s.sessions, id)
		}
	}

	return nil
}

func (s *Store) List(_ context.Context) ([]session.Session, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	sessions := make([]session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}

	return sessions, nil
}
