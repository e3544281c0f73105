package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/bcnelson/seo-insights/internal/validation"
)

// QueryHandler handles query endpoints.
type QueryHandler struct {
	queries *service.QueryService
	index   *service.IndexService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queries *service.QueryService, index *service.IndexService) *QueryHandler {
	return &QueryHandler{queries: queries, index: index}
}

// List lists queries with search, filter, sort and paging parameters.
func (h *QueryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseQueryFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	page, err := h.queries.List(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Upsert inserts or replaces a batch of queries.
func (h *QueryHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var queries []*domain.Query
	if err := decodeBody(w, r, &queries); err != nil {
		handleError(w, r, err)
		return
	}

	n, err := h.queries.Upsert(r.Context(), queries)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &domain.UpsertQueriesResponse{Upserted: n})
}

// Reindex rebuilds the search index now.
func (h *QueryHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	result, err := h.index.ForceReindex(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ParseQueryFilter reads search, opportunity, sort, order, limit and offset
// from the URL query.
func ParseQueryFilter(r *http.Request) (domain.QueryFilter, error) {
	q := r.URL.Query()
	filter := domain.QueryFilter{
		Search: q.Get("search"),
		Sort:   q.Get("sort"),
	}

	var errs validation.ValidationErrors
	desc, err := parseOrder(q.Get("order"))
	if err != nil {
		errs.Add("order", q.Get("order"), "must be one of: asc desc")
	}
	filter.Descending = desc
	if filter.Sort == "" {
		filter.Sort = domain.QuerySortImpressions
		if q.Get("order") == "" {
			filter.Descending = true
		}
	}

	if v := q.Get("opportunity"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs.Add("opportunity", v, "must be true or false")
		}
		filter.OpportunityOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs.Add("limit", v, "must be a non-negative integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs.Add("offset", v, "must be a non-negative integer")
		}
		filter.Offset = n
	}
	if errs.HasErrors() {
		return filter, errs
	}
	return filter, nil
}

// parseOrder maps "asc" / "desc" to a descending flag. Empty means ascending.
func parseOrder(order string) (bool, error) {
	switch strings.ToLower(order) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		var errs validation.ValidationErrors
		errs.Add("order", order, "must be one of: asc desc")
		return false, errs
	}
}
