package web

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/selection"
	"github.com/go-chi/chi/v5"
)

// GroupsListData holds data for the groups list page.
type GroupsListData struct {
	Groups []*domain.GroupDto
	Sort   string
}

// handleGroupsList renders the caller's groups.
func (s *Server) handleGroupsList(w http.ResponseWriter, r *http.Request) {
	sortKey := r.URL.Query().Get("sort")
	desc := sortKey == domain.GroupSortQueryCount || sortKey == domain.GroupSortCreatedAt

	groups, err := s.groups.List(r.Context(), currentUser(r).ID, sortKey, desc)
	if err != nil {
		s.renderError(w, err)
		return
	}

	s.renderPage(w, r, "groups", PageData{
		Title:   "Groups",
		Active:  "groups",
		Content: GroupsListData{Groups: groups, Sort: sortKey},
	})
}

// handleGroupCreate creates a group from the selected queries.
func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	selected := r.Form["selected"]
	if len(selected) == 0 {
		s.renderMessage(w, "Select at least one query.", http.StatusBadRequest)
		return
	}

	group, err := s.groups.Create(r.Context(), currentUser(r).ID, domain.CreateGroupRequest{
		Name:     r.FormValue("name"),
		QueryIDs: selected,
	})
	if err != nil {
		s.renderError(w, err)
		return
	}

	hxRedirect(w, "/groups/"+group.ID+"?notice="+url.QueryEscape("Group created."))
}

// GroupDetailData holds data for the group detail page.
type GroupDetailData struct {
	Group *domain.GroupDto
	Items []*domain.Query
	ETag  string
}

// handleGroupDetail renders a group with its metrics and members.
func (s *Server) handleGroupDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	userID := currentUser(r).ID

	group, err := s.groups.Get(ctx, userID, id)
	if err != nil {
		if errorStatus(err) == http.StatusNotFound {
			http.Redirect(w, r, "/groups?error="+url.QueryEscape("Group not found."), http.StatusSeeOther)
			return
		}
		s.renderError(w, err)
		return
	}
	items, err := s.groups.Items(ctx, userID, id)
	if err != nil {
		s.renderError(w, err)
		return
	}

	s.renderPage(w, r, "group_detail", PageData{
		Title:  group.Name,
		Active: "groups",
		Content: GroupDetailData{
			Group: group,
			Items: items,
			ETag:  group.ETag(),
		},
	})
}

// handleGroupRename renames a group. The form carries the ETag the page was
// rendered with, so a concurrent change is reported instead of overwritten.
func (s *Server) handleGroupRename(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.groups.Rename(r.Context(), currentUser(r).ID, id, r.FormValue("name"), r.FormValue("etag")); err != nil {
		s.renderError(w, err)
		return
	}

	hxRedirect(w, "/groups/"+id+"?notice="+url.QueryEscape("Group renamed."))
}

// handleGroupDelete deletes a group.
func (s *Server) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Delete(r.Context(), currentUser(r).ID, chi.URLParam(r, "id"), r.Header.Get("If-Match")); err != nil {
		s.renderError(w, err)
		return
	}

	hxRedirect(w, "/groups?notice="+url.QueryEscape("Group deleted."))
}

// handleGroupItemRemove removes one query from a group.
func (s *Server) handleGroupItemRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.groups.RemoveItem(r.Context(), currentUser(r).ID, id, chi.URLParam(r, "queryId")); err != nil {
		s.renderError(w, err)
		return
	}

	hxRedirect(w, "/groups/"+id+"?notice="+url.QueryEscape("Query removed."))
}

// AddDialogData holds data for the add queries dialog.
type AddDialogData struct {
	GroupID   string
	Search    string
	SelectURL template.URL
	Queries   []*domain.Query
	Selection *selection.Set
}

// loadAddDialog lists queries matching search that are not yet in the group.
func (s *Server) loadAddDialog(r *http.Request) (*AddDialogData, error) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	search := r.URL.Query().Get("search")

	members, err := s.groups.Items(ctx, currentUser(r).ID, id)
	if err != nil {
		return nil, err
	}
	inGroup := make(map[string]bool, len(members))
	for _, q := range members {
		inGroup[q.ID] = true
	}

	page, err := s.queries.List(ctx, domain.QueryFilter{
		Search:     search,
		Sort:       domain.QuerySortImpressions,
		Descending: true,
		Limit:      queriesPageSize + len(members),
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]*domain.Query, 0, len(page.Data))
	for _, q := range page.Data {
		if !inGroup[q.ID] && len(candidates) < queriesPageSize {
			candidates = append(candidates, q)
		}
	}
	return &AddDialogData{
		GroupID:   id,
		Search:    search,
		SelectURL: template.URL("/groups/" + url.PathEscape(id) + "/add/select?search=" + url.QueryEscape(search)),
		Queries:   candidates,
	}, nil
}

// handleAddDialog renders the add queries dialog.
func (s *Server) handleAddDialog(w http.ResponseWriter, r *http.Request) {
	data, err := s.loadAddDialog(r)
	if err != nil {
		s.renderError(w, err)
		return
	}
	data.Selection = selection.NewSet(queryIDs(data.Queries))
	s.renderFragment(w, "group_detail", "add_dialog", data)
}

// handleAddDialogSelect applies a selection action inside the dialog.
func (s *Server) handleAddDialogSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	data, err := s.loadAddDialog(r)
	if err != nil {
		s.renderError(w, err)
		return
	}
	data.Selection = selectionFromForm(r, queryIDs(data.Queries))
	s.renderFragment(w, "group_detail", "add_dialog", data)
}

// handleGroupItemsAdd adds the selected queries to the group.
func (s *Server) handleGroupItemsAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	selected := r.Form["selected"]
	if len(selected) == 0 {
		s.renderMessage(w, "Select at least one query.", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	resp, err := s.groups.AddItems(r.Context(), currentUser(r).ID, id, selected)
	if err != nil {
		s.renderError(w, err)
		return
	}

	notice := "Added " + strconv.Itoa(resp.AddedCount) + " queries."
	if resp.SkippedCount > 0 {
		notice += " " + strconv.Itoa(resp.SkippedCount) + " were already in the group."
	}
	hxRedirect(w, "/groups/"+id+"?notice="+url.QueryEscape(notice))
}
