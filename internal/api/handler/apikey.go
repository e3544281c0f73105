package handler

import (
	"net/http"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/go-chi/chi/v5"
)

// APIKeyHandler handles API key endpoints.
type APIKeyHandler struct {
	auth *service.AuthService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(auth *service.AuthService) *APIKeyHandler {
	return &APIKeyHandler{auth: auth}
}

// Create creates a new API key for the caller.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	resp, err := h.auth.CreateAPIKey(r.Context(), currentUserID(r), req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// List lists the caller's API keys (without the actual key values).
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.auth.ListAPIKeys(r.Context(), currentUserID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if keys == nil {
		keys = []*domain.APIKey{}
	}
	respondJSON(w, http.StatusOK, keys)
}

// Delete deletes one of the caller's API keys.
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.DeleteAPIKey(r.Context(), currentUserID(r), chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
