package handler

import (
	"net/http"

	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
	"go.uber.org/zap"
)

// AuthHandler handles account endpoints.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionManager
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, sessions *auth.SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, sessions: sessions, logger: logger}
}

// Register creates an account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login checks credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.sessions.Create(w, &auth.Session{
		UserID: user.ID,
		Email:  user.Email,
		Method: auth.MethodPassword,
	}); err != nil {
		handleError(w, r, err)
		return
	}
	h.logger.Info("user logged in", zap.String("user_id", user.ID))
	respondJSON(w, http.StatusOK, user)
}

// Logout ends the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, middleware.UserFromContext(r.Context()))
}

// ForgotPassword mails a reset link. The answer is the same whether or not
// the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &domain.MessageResponse{
		Message: "If an account exists for that email, a reset link has been sent.",
	})
}

// ResetPassword redeems a reset token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &domain.MessageResponse{Message: "Password updated."})
}

// ChangePassword changes the caller's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), currentUserID(r), req.CurrentPassword, req.NewPassword); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &domain.MessageResponse{Message: "Password updated."})
}
