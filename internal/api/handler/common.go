package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/validation"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; bulk query uploads are the largest.
const maxBodyBytes = 8 << 20

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes the standard error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	respondJSON(w, status, &domain.StandardErrorResponse{
		Error: domain.StandardError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondValidationErrors writes a 400 listing every failed field.
func respondValidationErrors(w http.ResponseWriter, errs validation.ValidationErrors) {
	respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, errs.Error(), map[string]any{
		"errors": errs,
	})
}

// handleError converts domain errors to HTTP errors.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errs, ok := validation.AsValidationErrors(err); ok {
		respondValidationErrors(w, errs)
		return
	}

	var precondition *domain.PreconditionError
	switch {
	case errors.As(err, &precondition):
		respondError(w, http.StatusPreconditionFailed, domain.ErrCodePreconditionFailed,
			precondition.Error(), map[string]any{"currentETag": precondition.CurrentETag})
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, domain.ErrCodeValidation, err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidToken):
		// A bad reset link is the caller's input, not missing credentials.
		respondError(w, http.StatusBadRequest, domain.ErrCodeUnauthorized, "invalid or expired reset token", nil)
	case errors.Is(err, domain.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid email or password", nil)
	case errors.Is(err, domain.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "authentication required", nil)
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, domain.ErrCodeForbidden, "forbidden", nil)
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, domain.ErrCodeNotFound, "not found", nil)
	case errors.Is(err, domain.ErrAlreadyExists):
		respondError(w, http.StatusConflict, domain.ErrCodeConflict, "already exists", nil)
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, domain.ErrCodeConflict, "conflict", nil)
	case errors.Is(err, domain.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, domain.ErrCodeRateLimited, "too many requests", nil)
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "internal server error", nil)
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var errs validation.ValidationErrors
		errs.Add("body", "", "invalid request body")
		return errs
	}
	return nil
}

// decodeJSON decodes a JSON request body into the struct v and validates
// its tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := decodeBody(w, r, v); err != nil {
		return err
	}
	return validation.Struct(v)
}

// currentUserID returns the authenticated user's id.
// Routes using it are always behind the auth middleware.
func currentUserID(r *http.Request) string {
	if user := middleware.UserFromContext(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
