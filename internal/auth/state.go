package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// StateCookieName holds the pending OIDC login between redirect and callback.
	StateCookieName = "seo_oidc_state"
	stateTTL        = 5 * time.Minute
)

// StateData is one pending OIDC login: the CSRF state, the ID token nonce
// and the local path to return to.
type StateData struct {
	State      string    `json:"state"`
	Nonce      string    `json:"nonce"`
	RedirectTo string    `json:"redirect_to,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// StateStore keeps StateData in a short-lived sealed cookie.
type StateStore struct {
	cookie *sealedCookie
}

// NewStateStore creates a state store. key must be 32 bytes.
func NewStateStore(key []byte, secure bool) (*StateStore, error) {
	c, err := newSealedCookie(StateCookieName, key, stateTTL, secure)
	if err != nil {
		return nil, fmt.Errorf("state store key: %w", err)
	}
	return &StateStore{cookie: c}, nil
}

// Generate starts a login. redirectTo passes through SafeRedirect.
func (ss *StateStore) Generate(w http.ResponseWriter, redirectTo string) (*StateData, error) {
	state, err := GenerateSecureString(32)
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}
	nonce, err := GenerateSecureString(32)
	if err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	data := &StateData{
		State:      state,
		Nonce:      nonce,
		RedirectTo: SafeRedirect(redirectTo),
		ExpiresAt:  time.Now().Add(stateTTL),
	}
	if err := ss.cookie.write(w, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Validate checks the state returned by the provider against the cookie.
func (ss *StateStore) Validate(r *http.Request, state string) (*StateData, error) {
	var data StateData
	if err := ss.cookie.read(r, &data); err != nil {
		return nil, err
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, errors.New("login state expired")
	}
	if !ConstantTimeCompare(data.State, state) {
		return nil, errors.New("state mismatch")
	}
	return &data, nil
}

// Clear removes the state cookie once the callback has used it.
func (ss *StateStore) Clear(w http.ResponseWriter) {
	ss.cookie.clear(w)
}

// SafeRedirect returns target if it is a local absolute path, "/" otherwise.
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/"
	}
	return target
}
