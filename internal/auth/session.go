package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "seo_session"

// Login methods recorded on a session.
const (
	MethodPassword = "password"
	MethodOIDC     = "oidc"
)

// ErrSessionExpired is returned for a well-formed session past its expiry.
var ErrSessionExpired = errors.New("session expired")

// Session is what the browser carries between requests. It names the user
// and how they signed in; everything else is looked up per request.
type Session struct {
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionManager issues and reads browser sessions sealed with AES-256-GCM.
type SessionManager struct {
	cookie   *sealedCookie
	duration time.Duration
}

// NewSessionManager creates a session manager. key must be 32 bytes; secure
// sets the Secure flag for HTTPS deployments.
func NewSessionManager(key []byte, duration time.Duration, secure bool) (*SessionManager, error) {
	c, err := newSealedCookie(SessionCookieName, key, duration, secure)
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	return &SessionManager{cookie: c, duration: duration}, nil
}

// Create stamps session with its lifetime and sets the cookie.
func (sm *SessionManager) Create(w http.ResponseWriter, session *Session) error {
	session.CreatedAt = time.Now()
	session.ExpiresAt = session.CreatedAt.Add(sm.duration)
	return sm.cookie.write(w, session)
}

// Get returns the session on r. Missing, tampered and expired cookies are
// all errors.
func (sm *SessionManager) Get(r *http.Request) (*Session, error) {
	var session Session
	if err := sm.cookie.read(r, &session); err != nil {
		return nil, err
	}
	if session.UserID == "" {
		return nil, errors.New("session has no user")
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Clear removes the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	sm.cookie.clear(w)
}
