package web

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bcnelson/seo-insights/internal/api/handler"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/selection"
)

const queriesPageSize = 50

// QueriesData holds data for the queries page and its table fragment.
type QueriesData struct {
	Filter    domain.QueryFilter
	Page      *domain.QueryPage
	Selection *selection.Set
	SelectURL template.URL
	PrevURL   template.URL
	NextURL   template.URL
	HasPrev   bool
	HasNext   bool
}

// loadQueries lists the page of queries described by r's URL.
func (s *Server) loadQueries(r *http.Request) (*QueriesData, error) {
	filter, err := handler.ParseQueryFilter(r)
	if err != nil {
		// Bad parameters from a hand-edited URL fall back to the defaults.
		filter = domain.QueryFilter{Search: r.URL.Query().Get("search"), Sort: domain.QuerySortImpressions, Descending: true}
	}
	if filter.Limit == 0 {
		filter.Limit = queriesPageSize
	}

	page, err := s.queries.List(r.Context(), filter)
	if err != nil {
		return nil, err
	}

	prev, next := filter, filter
	prev.Offset = max(page.Offset-page.Limit, 0)
	next.Offset = page.Offset + page.Limit

	data := &QueriesData{
		Filter:    filter,
		Page:      page,
		SelectURL: template.URL("/queries/select?" + encodeFilter(filter)),
		PrevURL:   template.URL("/queries?" + encodeFilter(prev)),
		NextURL:   template.URL("/queries?" + encodeFilter(next)),
		HasPrev:   page.Offset > 0,
		HasNext:   page.Offset+len(page.Data) < page.Total,
	}
	return data, nil
}

func encodeFilter(f domain.QueryFilter) string {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.OpportunityOnly {
		v.Set("opportunity", "true")
	}
	v.Set("sort", f.Sort)
	if f.Descending {
		v.Set("order", "desc")
	} else {
		v.Set("order", "asc")
	}
	v.Set("limit", strconv.Itoa(f.Limit))
	v.Set("offset", strconv.Itoa(f.Offset))
	return v.Encode()
}

// handleQueries renders the queries page. htmx requests from the search box
// get the table fragment only.
func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	data, err := s.loadQueries(r)
	if err != nil {
		s.renderError(w, err)
		return
	}
	data.Selection = selection.NewSet(queryIDs(data.Page.Data))

	if isHTMX(r) {
		s.renderFragment(w, "queries", "query_table", data)
		return
	}
	s.renderPage(w, r, "queries", PageData{
		Title:   "Queries",
		Active:  "queries",
		Content: data,
	})
}

// handleQuerySelect applies a selection action to the visible page and
// re-renders the table.
func (s *Server) handleQuerySelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	data, err := s.loadQueries(r)
	if err != nil {
		s.renderError(w, err)
		return
	}
	data.Selection = selectionFromForm(r, queryIDs(data.Page.Data))
	s.renderFragment(w, "queries", "query_table", data)
}
