// Package sessionpostgres persists sessions in PostgreSQL. The schema
// lives in the sql directory and is applied by the migrate command.
package sessionpostgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
)

type Store struct {
	db *pgxpool.Pool
}

var _ = session.Store(&Store{})

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const sessionColumns = `id, subject, provider_session_id, claims, access_token, token_type,
	refresh_token, id_token, token_expiry, expiry, created_at`

func (s *Store) Load(ctx context.Context, sessionID string) (session.Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM sessions
WHERE id = $1
	AND expiry > now();`,
		sessionID,
	)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, serviceerr.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("selecting from sessions: %w", err)
	}

	return sess, nil
}

func (s *Store) Save(ctx context.Context, sess session.Session) error {
	_, err := s.db.Exec(ctx, `INSERT INTO sessions (`+sessionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id)
	DO UPDATE SET (subject, provider_session_id, claims, access_token, token_type, refresh_token, id_token, token_expiry, expiry, created_at) =
		(EXCLUDED.subject, EXCLUDED.provider_session_id, EXCLUDED.claims, EXCLUDED.access_token, EXCLUDED.token_type,
		EXCLUDED.refresh_token, EXCLUDED.id_token, EXCLUDED.token_expiry, EXCLUDED.expiry, EXCLUDED.created_at);`,
		sess.ID, sess.Subject, sess.ProviderSessionID, sess.Claims, sess.AccessToken, sess.TokenType,
		sess.RefreshToken, sess.IDToken, sess.TokenExpiry, sess.Expiry, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting into sessions: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1;`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting from sessions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	return nil
}

func (s *Store) DeleteByProviderSessionID(ctx context.Context, providerSessionID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE provider_session_id = $1;`, providerSessionID); err != nil {
		return fmt.Errorf("deleting sessions by provider session id: %w", err)
	}

	return nil
}

func (s *Store) DeleteBySubject(ctx context.Context, subject string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE subject = $1;`, subject); err != nil {
		return fmt.Errorf("deleting sessions by subject: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+`
FROM sessions
WHERE expiry > now();`)
	if err != nil {
		return nil, fmt.Errorf("selecting from sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	return sessions, nil
}

func scanSession(row pgx.Row) (session.Session, error) {
	var sess session.Session
	err := row.Scan(
		&sess.ID, &sess.Subject, &sess.ProviderSessionID, &sess.Claims, &sess.AccessToken, &sess.TokenType,
		&sess.RefreshToken, &sess.IDToken, &sess.TokenExpiry, &sess.Expiry, &sess.CreatedAt,
	)

	return sess, err
}
