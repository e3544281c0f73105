package web

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/domain"
	"go.uber.org/zap"
)

// LoginData holds data for the login page.
type LoginData struct {
	Email       string
	Next        string
	OIDCEnabled bool
}

// handleLoginPage renders the login page.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Get(r); err == nil {
		http.Redirect(w, r, "/queries", http.StatusSeeOther)
		return
	}

	data := PageData{
		Title: "Login",
		Flash: flashFromQuery(r),
		Content: LoginData{
			Next:        auth.SafeRedirect(r.URL.Query().Get("next")),
			OIDCEnabled: s.oidc != nil,
		},
	}
	s.render(w, "base-noauth", "login", data)
}

// handleLogin processes the login form.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	next := auth.SafeRedirect(r.FormValue("next"))
	if email == "" || r.FormValue("password") == "" {
		s.renderLoginError(w, email, next, "Email and password are required.", http.StatusBadRequest)
		return
	}

	user, err := s.auth.Login(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.Error("login failed", zap.Error(err))
		}
		s.renderLoginError(w, email, next, errorMessage(err), errorStatus(err))
		return
	}

	if err := s.sessions.Create(w, &auth.Session{UserID: user.ID, Email: user.Email, Method: auth.MethodPassword}); err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		s.renderLoginError(w, email, next, "Failed to create session.", http.StatusInternalServerError)
		return
	}

	if next == "/" {
		next = "/queries"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) renderLoginError(w http.ResponseWriter, email, next, message string, status int) {
	s.renderStatus(w, status, "base-noauth", "login", PageData{
		Title:   "Login",
		Flash:   &FlashMessage{Type: "error", Message: message},
		Content: LoginData{Email: email, Next: next, OIDCEnabled: s.oidc != nil},
	})
}

// handleLogout clears the session and redirects to login. Single sign-on
// sessions go to the provider's logout page when one is configured.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if sess, err := s.sessions.Get(r); err == nil && sess.Method == auth.MethodOIDC && s.oidcLogoutURL != "" {
		target = s.oidcLogoutURL
	}
	s.sessions.Clear(w)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleForgotPasswordPage renders the forgot password form.
func (s *Server) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "base-noauth", "forgot_password", PageData{
		Title: "Forgot password",
		Flash: flashFromQuery(r),
	})
}

// handleForgotPassword mails a reset link. The response does not reveal
// whether the account exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/forgot-password?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		http.Redirect(w, r, "/forgot-password?error="+url.QueryEscape("Email is required."), http.StatusSeeOther)
		return
	}
	if err := s.auth.RequestPasswordReset(r.Context(), email); err != nil {
		s.logger.Error("password reset request failed", zap.Error(err))
		http.Redirect(w, r, "/forgot-password?error="+url.QueryEscape(errorMessage(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login?notice="+url.QueryEscape("If that account exists, a reset link is on its way."), http.StatusSeeOther)
}

// ResetPasswordData holds data for the reset password page.
type ResetPasswordData struct {
	Token string
}

// handleResetPasswordPage renders the new password form for a reset link.
func (s *Server) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	data := PageData{
		Title:   "Reset password",
		Flash:   flashFromQuery(r),
		Content: ResetPasswordData{Token: token},
	}
	if token == "" && data.Flash == nil {
		data.Flash = &FlashMessage{Type: "error", Message: "This reset link is invalid or has expired."}
	}
	s.render(w, "base-noauth", "reset_password", data)
}

// handleResetPassword redeems a reset token.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/reset-password?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	token := r.FormValue("token")
	password := r.FormValue("password")
	message := ""
	switch {
	case token == "":
		message = "This reset link is invalid or has expired."
	case password != r.FormValue("confirm"):
		message = "Passwords do not match."
	}
	if message == "" {
		err := s.auth.ResetPassword(r.Context(), token, password)
		if err == nil {
			http.Redirect(w, r, "/login?notice="+url.QueryEscape("Password updated. Sign in with your new password."), http.StatusSeeOther)
			return
		}
		if errorStatus(err) == http.StatusInternalServerError {
			s.logger.Error("password reset failed", zap.Error(err))
		}
		message = errorMessage(err)
	}

	s.renderStatus(w, http.StatusBadRequest, "base-noauth", "reset_password", PageData{
		Title:   "Reset password",
		Flash:   &FlashMessage{Type: "error", Message: message},
		Content: ResetPasswordData{Token: token},
	})
}

// render renders a full page using the base template.
// base is "base" for signed-in pages, "base-noauth" otherwise.
func (s *Server) render(w http.ResponseWriter, base, page string, data PageData) {
	s.renderStatus(w, http.StatusOK, base, page, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, status int, base, page string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "Template not found: "+page, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, base, data); err != nil {
		s.logger.Error("template error", zap.String("page", page), zap.Error(err))
	}
}

// renderPage renders a signed-in page with the user's email in the nav.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	if user := currentUser(r); user != nil {
		data.User = user.Email
	}
	if data.Flash == nil {
		data.Flash = flashFromQuery(r)
	}
	s.render(w, "base", page, data)
}

// renderFragment renders one named template of a page for htmx requests.
func (s *Server) renderFragment(w http.ResponseWriter, page, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "Template not found: "+page, http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", zap.String("page", page), zap.String("fragment", name), zap.Error(err))
	}
}

// renderError renders an error message fragment.
func (s *Server) renderError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.renderMessage(w, errorMessage(err), status)
}

// renderMessage renders a plain error fragment.
func (s *Server) renderMessage(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`<div class="flash flash-error">` + template.HTMLEscapeString(message) + `</div>`))
}

// hxRedirect tells htmx to navigate to target.
func hxRedirect(w http.ResponseWriter, target string) {
	w.Header().Set("HX-Redirect", target)
	w.WriteHeader(http.StatusOK)
}
