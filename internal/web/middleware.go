package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/domain"
	"go.uber.org/zap"
)

// sessionAuth is middleware that requires a signed-in user. Browsers without
// a session are sent to the login page.
func (s *Server) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, err := s.authn.Resolve(r)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthorized) {
				s.logger.Error("session lookup failed", zap.Error(err))
			}
			s.redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), user)))
	})
}

// redirectToLogin sends the browser to /login, remembering where it was
// headed. htmx requests get an HX-Redirect so the whole page navigates.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if r.Method == http.MethodGet && r.URL.Path != "/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// currentUser returns the signed-in user. Routes using it sit behind
// sessionAuth.
func currentUser(r *http.Request) *domain.User {
	return middleware.UserFromContext(r.Context())
}
