// Package sessionvalkey persists sessions in ValKey, with per-key TTLs
// matching the session expiry and a secondary index on the provider's
// sid claim for back-channel logout.
package sessionvalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
)

const (
	objectTypeSession         = "session"
	objectTypeProviderSession = "providerSession"
)

type Store struct {
	valkey valkey.Client
	prefix string
}

var _ = session.Store(&Store{})

func NewStore(valkeyClient valkey.Client, prefix string) *Store {
	return &Store{
		valkey: valkeyClient,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (s *Store) Load(ctx context.Context, sessionID string) (session.Session, error) {
	var sess session.Session
	if err := s.get(ctx, s.key(objectTypeSession, sessionID), &sess); err != nil {
		return session.Session{}, err
	}

	return sess, nil
}

func (s *Store) Save(ctx context.Context, sess session.Session) error {
	ttl := time.Until(sess.Expiry)
	if err := s.set(ctx, s.key(objectTypeSession, sess.ID), sess, ttl); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	if sess.ProviderSessionID != "" {
		if err := s.set(ctx, s.key(objectTypeProviderSession, sess.ProviderSessionID), sess.ID, ttl); err != nil {
			return fmt.Errorf("storing provider session index: %w", err)
		}
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	var sess session.Session
	err := s.get(ctx, s.key(objectTypeSession, sessionID), &sess)
	if err != nil {
		return err
	}

	if sess.ProviderSessionID != "" {
		if err := s.destroy(ctx, s.key(objectTypeProviderSession, sess.ProviderSessionID)); err != nil {
			return err
		}
	}

	return s.destroy(ctx, s.key(objectTypeSession, sessionID))
}

func (s *Store) DeleteByProviderSessionID(ctx context.Context, providerSessionID string) error {
	var sessionID string
	err := s.get(ctx, s.key(objectTypeProviderSession, providerSessionID), &sessionID)
	if errors.Is(err, serviceerr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.Delete(ctx, sessionID); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
		return err
	}

	return nil
}

func (s *Store) DeleteBySubject(ctx context.Context, subject string) error {
	sessions, err := s.List(ctx)
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		if sess.Subject != subject {
			continue
		}
		if err := s.Delete(ctx, sess.ID); err != nil && !errors.Is(err, serviceerr.ErrNotFound) {
			return err
		}
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Session, error) {
	pattern := s.key(objectTypeSession, "*")

	var sessions []session.Session
	var cursor uint64
	for {
		scan, err := s.valkey.Do(ctx, s.valkey.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("executing scan command: %w", err)
		}

		cursor = scan.Cursor
		for _, key := range scan.Elements {
			var sess session.Session
			if err := s.get(ctx, key, &sess); err != nil {
				if errors.Is(err, serviceerr.ErrNotFound) {
					// expired between scan and get
					continue
				}

				return nil, err
			}
			sessions = append(sessions, sess)
		}

		if cursor == 0 {
			return sessions, nil
		}
	}
}

func (s *Store) set(ctx context.Context, key string, val any, ttl time.Duration) error {
	bytes, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	cmd := s.valkey.B().Set().Key(key).Value(valkey.BinaryString(bytes)).Ex(ttl).Build()
	if err := s.valkey.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

func (s *Store) get(ctx context.Context, key string, decodeInto any) error {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return serviceerr.ErrNotFound
		}

		return fmt.Errorf("executing get command: %w", err)
	}

	if err := json.Unmarshal(bytes, decodeInto); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}

	return nil
}

func (s *Store) destroy(ctx context.Context, key string) error {
	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

func (s *Store) key(objectType, objectID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, objectID)
}
