//go:build integration

package integration_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/web-login/internal/dbtest/postgrestest"
	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
	sessionpostgres "github.com/openkcm/web-login/internal/session/postgres"
)

func TestPostgresStore(t *testing.T) {
	ctx := t.Context()

	db, _, terminate := postgrestest.Start(ctx)
	defer terminate(ctx)
	defer db.Close()

	store := sessionpostgres.NewStore(db)

	now := time.Now().Truncate(time.Microsecond)

	sess := session.Session{
		ID:                "sess-1",
		Subject:           "user-1",
		ProviderSessionID: "sid-1",
		Claims:            session.Claims{"sub": "user-1", "email": "user@example.com"},
		AccessToken:       "access-1",
		TokenType:         "Bearer",
		RefreshToken:      "refresh-1",
		IDToken:           "id-token-1",
		TokenExpiry:       now.Add(time.Hour),
		Expiry:            now.Add(12 * time.Hour),
		CreatedAt:         now,
	}

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sess))

		got, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, sess.Subject, got.Subject)
		assert.Equal(t, sess.Claims, got.Claims)
		assert.Equal(t, sess.RefreshToken, got.RefreshToken)
		assert.WithinDuration(t, sess.TokenExpiry, got.TokenExpiry, time.Millisecond)
	})

	t.Run("save upserts", func(t *testing.T) {
		updated := sess
		updated.AccessToken = "access-2"
		require.NoError(t, store.Save(ctx, updated))

		got, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "access-2", got.AccessToken)
	})

	t.Run("list returns live sessions only", func(t *testing.T) {
		expired := sess
		expired.ID = "sess-expired"
		expired.Expiry = now.Add(-time.Minute)
		require.NoError(t, store.Save(ctx, expired))

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, "sess-1", sessions[0].ID)

		_, err = store.Load(ctx, "sess-expired")
		assert.True(t, errors.Is(err, serviceerr.ErrNotFound))
	})

	t.Run("delete by provider session id", func(t *testing.T) {
		require.NoError(t, store.DeleteByProviderSessionID(ctx, "sid-1"))

		_, err := store.Load(ctx, "sess-1")
		assert.True(t, errors.Is(err, serviceerr.ErrNotFound))
	})

	t.Run("delete by subject", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sess))
		require.NoError(t, store.DeleteBySubject(ctx, "user-1"))

		_, err := store.Load(ctx, "sess-1")
		assert.True(t, errors.Is(err, serviceerr.ErrNotFound))
	})

	t.Run("delete unknown session", func(t *testing.T) {
		err := store.Delete(ctx, "no-such-session")
		assert.True(t, errors.Is(err, serviceerr.ErrNotFound))
	})
}
