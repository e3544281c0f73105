package web

import (
	"net/http"
	"net/url"

	"github.com/bcnelson/seo-insights/internal/auth"
	"go.uber.org/zap"
)

func (s *Server) oidcEnabled(w http.ResponseWriter) bool {
	if s.oidc == nil || s.states == nil {
		http.Error(w, "Single sign-on is not enabled", http.StatusNotFound)
		return false
	}
	return true
}

// oidcFailed sends the browser back to the login page with message.
func (s *Server) oidcFailed(w http.ResponseWriter, r *http.Request, message string, err error) {
	if err != nil {
		s.logger.Warn("OIDC login failed", zap.String("reason", message), zap.Error(err))
	}
	http.Redirect(w, r, "/login?error="+url.QueryEscape(message), http.StatusSeeOther)
}

// handleOIDCLogin redirects to the provider. The "next" parameter survives
// the round trip in the state cookie.
func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcEnabled(w) {
		return
	}

	pending, err := s.states.Generate(w, r.URL.Query().Get("next"))
	if err != nil {
		s.oidcFailed(w, r, "Failed to initiate login", err)
		return
	}
	http.Redirect(w, r, s.oidc.AuthCodeURL(pending.State, pending.Nonce), http.StatusSeeOther)
}

// handleOIDCCallback completes the provider login and starts a session for
// the matching account, creating it on first sign-in.
func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcEnabled(w) {
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = providerErr
		}
		s.logger.Warn("OIDC provider returned error", zap.String("error", providerErr), zap.String("description", desc))
		s.oidcFailed(w, r, desc, nil)
		return
	}
	code := q.Get("code")
	if code == "" {
		s.oidcFailed(w, r, "No authorization code received", nil)
		return
	}

	pending, err := s.states.Validate(r, q.Get("state"))
	if err != nil {
		s.oidcFailed(w, r, "Invalid state parameter", err)
		return
	}
	s.states.Clear(w)

	claims, err := s.oidc.Exchange(ctx, code, pending.Nonce)
	if err != nil {
		s.oidcFailed(w, r, "Failed to complete authentication", err)
		return
	}
	if err := s.oidc.ValidateClaims(claims); err != nil {
		s.oidcFailed(w, r, err.Error(), err)
		return
	}

	user, err := s.auth.EnsureSSOUser(ctx, claims.Email)
	if err != nil {
		s.oidcFailed(w, r, "Failed to sign in", err)
		return
	}
	if err := s.sessions.Create(w, &auth.Session{UserID: user.ID, Email: user.Email, Method: auth.MethodOIDC}); err != nil {
		s.oidcFailed(w, r, "Failed to create session", err)
		return
	}
	s.logger.Info("OIDC login", zap.String("user_id", user.ID))

	target := auth.SafeRedirect(pending.RedirectTo)
	if target == "/" {
		target = "/queries"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
