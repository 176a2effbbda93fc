package transient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/web-login/internal/config"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newStore(t *testing.T, template config.CookieTemplate, legacy bool) *Store {
	t.Helper()

	s, err := New(testSecret, template, 10*time.Minute, legacy)
	require.NoError(t, err)

	return s
}

// requestWith builds a request carrying the cookies a previous response set.
func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}

	return r
}

func TestNew_ShortSecret(t *testing.T) {
	_, err := New([]byte("short"), config.CookieTemplate{}, time.Minute, false)
	assert.Error(t, err)
}

func TestStore_SetAndGetOnce(t *testing.T) {
	s := newStore(t, config.CookieTemplate{Path: "/", Secure: true, SameSite: config.CookieSameSiteLax}, false)

	rec := httptest.NewRecorder()
	s.Set(rec, "state", "abc123")
	s.Set(rec, "nonce", "xyz789")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, int((10 * time.Minute).Seconds()), c.MaxAge)
	}

	r := requestWith(cookies)
	rec2 := httptest.NewRecorder()

	state, ok := s.GetOnce(rec2, r, "state")
	assert.True(t, ok)
	assert.Equal(t, "abc123", state)

	nonce, ok := s.GetOnce(rec2, r, "nonce")
	assert.True(t, ok)
	assert.Equal(t, "xyz789", nonce)
}

func TestStore_GetOnce_SingleUse(t *testing.T) {
	s := newStore(t, config.CookieTemplate{Path: "/"}, false)

	rec := httptest.NewRecorder()
	s.Set(rec, "state", "abc123")

	r := requestWith(rec.Result().Cookies())
	rec2 := httptest.NewRecorder()

	_, ok := s.GetOnce(rec2, r, "state")
	require.True(t, ok)

	// Second read within the same request comes up empty.
	_, ok = s.GetOnce(rec2, r, "state")
	assert.False(t, ok)

	// The response expires the cookie so later requests are empty too.
	expired := rec2.Result().Cookies()
	require.NotEmpty(t, expired)
	assert.Equal(t, -1, expired[0].MaxAge)

	r2 := requestWith(expired)
	_, ok = s.GetOnce(httptest.NewRecorder(), r2, "state")
	assert.False(t, ok)
}

func TestStore_GetOnce_Missing(t *testing.T) {
	s := newStore(t, config.CookieTemplate{Path: "/"}, false)

	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	_, ok := s.GetOnce(httptest.NewRecorder(), r, "state")
	assert.False(t, ok)
}

func TestStore_GetOnce_Tampered(t *testing.T) {
	s := newStore(t, config.CookieTemplate{Path: "/"}, false)

	rec := httptest.NewRecorder()
	s.Set(rec, "state", "abc123")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	r.AddCookie(&http.Cookie{Name: "state", Value: cookies[0].Value + "x"})

	rec2 := httptest.NewRecorder()
	_, ok := s.GetOnce(rec2, r, "state")
	assert.False(t, ok)

	// Even a rejected cookie gets cleared.
	expired := rec2.Result().Cookies()
	require.NotEmpty(t, expired)
	assert.Equal(t, -1, expired[0].MaxAge)
}

func TestStore_GetOnce_WrongKey(t *testing.T) {
	writer := newStore(t, config.CookieTemplate{Path: "/"}, false)
	reader := newStore(t, config.CookieTemplate{Path: "/"}, false)
	reader.secret = []byte("ffffffffffffffffffffffffffffffff")

	rec := httptest.NewRecorder()
	writer.Set(rec, "state", "abc123")

	r := requestWith(rec.Result().Cookies())
	_, ok := reader.GetOnce(httptest.NewRecorder(), r, "state")
	assert.False(t, ok)
}

func TestStore_LegacyFallback(t *testing.T) {
	s := newStore(t, config.CookieTemplate{Path: "/", Secure: true, SameSite: config.CookieSameSiteNone}, true)

	rec := httptest.NewRecorder()
	s.Set(rec, "state", "abc123")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "state", cookies[0].Name)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
	assert.Equal(t, "_state", cookies[1].Name)
	assert.Equal(t, http.SameSite(0), cookies[1].SameSite)

	// A user agent that drops SameSite=None cookies sends only the
	// legacy one back; the value is still readable and both names are
	// cleared on the response.
	r := httptest.NewRequest(http.MethodGet, "/callback", nil)
	r.AddCookie(&http.Cookie{Name: "_state", Value: cookies[1].Value})

	rec2 := httptest.NewRecorder()
	value, ok := s.GetOnce(rec2, r, "state")
	assert.True(t, ok)
	assert.Equal(t, "abc123", value)

	for _, c := range rec2.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestStore_LegacyFallback_NotWrittenForLax(t *testing.T) {
	s := newStore(t, config.CookieTemplate{Path: "/", SameSite: config.CookieSameSiteLax}, true)

	rec := httptest.NewRecorder()
	s.Set(rec, "state", "abc123")

	assert.Len(t, rec.Result().Cookies(), 1)
}
