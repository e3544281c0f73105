package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// requestWithCookies copies the cookies set on rec onto a new request.
func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionManager_RoundTrip(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Hour, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Create(rec, &Session{UserID: "u1", Email: "qa@example.com", Method: MethodPassword}))

	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, SessionCookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.NotContains(t, cookie.Value, "qa@example.com")

	session, err := sm.Get(requestWithCookies(rec))
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, MethodPassword, session.Method)
}

func TestSessionManager_Rejects(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Hour, false)
	require.NoError(t, err)

	_, err = sm.Get(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoCookie)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	_, err = sm.Get(req)
	assert.Error(t, err, "tampered cookie")

	other, err := NewSessionManager([]byte(strings.Repeat("x", 32)), time.Hour, false)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, other.Create(rec, &Session{UserID: "u1"}))
	_, err = sm.Get(requestWithCookies(rec))
	assert.Error(t, err, "cookie sealed with another key")

	expired, err := NewSessionManager(testKey, -time.Minute, false)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	require.NoError(t, expired.Create(rec, &Session{UserID: "u1"}))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: rec.Result().Cookies()[0].Value})
	_, err = sm.Get(req)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestNewSessionManager_KeyLength(t *testing.T) {
	_, err := NewSessionManager([]byte("short"), time.Hour, false)
	assert.Error(t, err)
}

func TestSessionManager_Clear(t *testing.T) {
	sm, err := NewSessionManager(testKey, time.Hour, true)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	sm.Clear(rec)
	cookie := rec.Result().Cookies()[0]
	assert.Equal(t, -1, cookie.MaxAge)
	assert.True(t, cookie.Secure)
}

func TestStateStore(t *testing.T) {
	ss, err := NewStateStore(testKey, false)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	data, err := ss.Generate(rec, "/groups/g1")
	require.NoError(t, err)
	assert.Equal(t, "/groups/g1", data.RedirectTo)

	got, err := ss.Validate(requestWithCookies(rec), data.State)
	require.NoError(t, err)
	assert.Equal(t, data.Nonce, got.Nonce)

	_, err = ss.Validate(requestWithCookies(rec), "wrong")
	assert.Error(t, err)

	_, err = ss.Validate(httptest.NewRequest(http.MethodGet, "/", nil), data.State)
	assert.ErrorIs(t, err, ErrNoCookie)

	clear := httptest.NewRecorder()
	ss.Clear(clear)
	assert.Equal(t, StateCookieName, clear.Result().Cookies()[0].Name)
	assert.Equal(t, -1, clear.Result().Cookies()[0].MaxAge)
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/queries?x=1", SafeRedirect("/queries?x=1"))
	assert.Equal(t, "/", SafeRedirect(""))
	assert.Equal(t, "/", SafeRedirect("https://evil.example"))
	assert.Equal(t, "/", SafeRedirect("//evil.example"))
	assert.Equal(t, "/", SafeRedirect(`/\evil.example`))
}

func TestValidateEmailDomain(t *testing.T) {
	assert.NoError(t, validateEmailDomain("a@example.com", nil))
	assert.NoError(t, validateEmailDomain("a@Example.COM", []string{"example.com"}))
	assert.Error(t, validateEmailDomain("a@other.com", []string{"example.com"}))
	assert.Error(t, validateEmailDomain("", nil))
	assert.Error(t, validateEmailDomain("no-at-sign", nil))
}
