package sessionmemory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/web-login/internal/serviceerr"
	"github.com/openkcm/web-login/internal/session"
)

func newSession(id, subject, sid string) session.Session {
	return session.Session{
		ID:                id,
		Subject:           subject,
		ProviderSessionID: sid,
		Expiry:            time.Now().Add(time.Hour),
	}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	s := NewStore()
	ctx := t.Context()

	_, err := s.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)

	require.NoError(t, s.Save(ctx, newSession("sess-1", "user-1", "sid-1")))

	loaded, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.Subject)

	// Save upserts
	updated := loaded
	updated.AccessToken = "at-2"
	require.NoError(t, s.Save(ctx, updated))

	loaded, err = s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", loaded.AccessToken)

	require.NoError(t, s.Delete(ctx, "sess-1"))
	assert.ErrorIs(t, s.Delete(ctx, "sess-1"), serviceerr.ErrNotFound)
}

func TestStore_Expiry(t *testing.T) {
	s := NewStore()
	ctx := t.Context()

	sess := newSession("sess-1", "user-1", "sid-1")
	sess.Expiry = time.Now().Add(-time.Minute)
	require.NoError(t, s.Save(ctx, sess))

	_, err := s.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)

	sessions, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStore_SaveExpiredReplacesLiveSession(t *testing.T) {
	s := NewStore()
	ctx := t.Context()

	require.NoError(t, s.Save(ctx, newSession("sess-1", "user-1", "sid-1")))

	expired := newSession("sess-1", "user-1", "sid-1")
	expired.Expiry = time.Now().Add(-time.Minute)
	require.NoError(t, s.Save(ctx, expired))

	_, err := s.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)
}

func TestStore_DeleteByProviderSessionID(t *testing.T) {
	s := NewStore()
	ctx := t.Context()

	require.NoError(t, s.Save(ctx, newSession("sess-1", "user-1", "sid-1")))
	require.NoError(t, s.Save(ctx, newSession("sess-2", "user-1", "sid-2")))

	require.NoError(t, s.DeleteByProviderSessionID(ctx, "sid-1"))

	_, err := s.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	_, err = s.Load(ctx, "sess-2")
	assert.NoError(t, err)
}

func TestStore_DeleteBySubject(t *testing.T) {
	s := NewStore()
	ctx := t.Context()

	require.NoError(t, s.Save(ctx, newSession("sess-1", "user-1", "sid-1")))
	require.NoError(t, s.Save(ctx, newSession("sess-2", "user-1", "sid-2")))
	require.NoError(t, s.Save(ctx, newSession("sess-3", "user-2", "sid-3")))

	require.NoError(t, s.DeleteBySubject(ctx, "user-1"))

	sessions, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "user-2", sessions[0].Subject)
}
