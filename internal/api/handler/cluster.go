package handler

import (
	"net/http"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
)

// ClusterHandler handles cluster suggestion endpoints.
type ClusterHandler struct {
	clusters *service.ClusterService
}

// NewClusterHandler creates a new ClusterHandler.
func NewClusterHandler(clusters *service.ClusterService) *ClusterHandler {
	return &ClusterHandler{clusters: clusters}
}

// Suggest proposes clusters of related queries.
func (h *ClusterHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req domain.SuggestClustersRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			handleError(w, r, err)
			return
		}
	}

	suggestions, err := h.clusters.Suggest(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestions)
}

// Accept creates groups from the chosen suggestions.
func (h *ClusterHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req domain.AcceptClustersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	groups, err := h.clusters.Accept(r.Context(), currentUserID(r), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, groups)
}
