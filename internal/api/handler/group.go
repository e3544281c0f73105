package handler

import (
	"net/http"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/go-chi/chi/v5"
)

// GroupHandler handles group endpoints.
type GroupHandler struct {
	groups *service.GroupService
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groups *service.GroupService) *GroupHandler {
	return &GroupHandler{groups: groups}
}

// Create creates a new group.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	group, err := h.groups.Create(r.Context(), currentUserID(r), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	SetGroupETag(w, group)
	w.Header().Set("Location", "/api/groups/"+group.ID)
	respondJSON(w, http.StatusCreated, group)
}

// List lists the caller's groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	desc, err := parseOrder(q.Get("order"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	groups, err := h.groups.List(r.Context(), currentUserID(r), q.Get("sort"), desc)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// Get gets a group by id.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.Get(r.Context(), currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	SetGroupETag(w, group)
	respondJSON(w, http.StatusOK, group)
}

// Rename renames a group.
func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req domain.RenameGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	group, err := h.groups.Rename(r.Context(), currentUserID(r), chi.URLParam(r, "id"), req.Name, ifMatch(r))
	if err != nil {
		handleError(w, r, err)
		return
	}

	SetGroupETag(w, group)
	respondJSON(w, http.StatusOK, group)
}

// Delete deletes a group.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.Delete(r.Context(), currentUserID(r), chi.URLParam(r, "id"), ifMatch(r)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Items lists the queries in a group.
func (h *GroupHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.groups.Items(r.Context(), currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.Query{}
	}
	respondJSON(w, http.StatusOK, items)
}

// AddItems adds queries to a group.
func (h *GroupHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	var req domain.AddGroupItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	resp, err := h.groups.AddItems(r.Context(), currentUserID(r), chi.URLParam(r, "id"), req.QueryIDs)
	if err != nil {
		handleError(w, r, err)
		return
	}

	SetGroupETag(w, resp.Group)
	respondJSON(w, http.StatusOK, resp)
}

// RemoveItem removes one query from a group.
func (h *GroupHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	group, err := h.groups.RemoveItem(r.Context(), currentUserID(r), chi.URLParam(r, "id"), chi.URLParam(r, "queryId"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	SetGroupETag(w, group)
	respondJSON(w, http.StatusOK, group)
}
