package web

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/bcnelson/seo-insights/internal/aggregate"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/selection"
)

// ClusterView is a suggestion as shown on the clusters page.
type ClusterView struct {
	domain.Cluster
	Queries []*domain.Query
	IDList  string // comma separated, round-tripped through the form
}

// ClustersData holds data for the cluster list fragment.
type ClustersData struct {
	Clusters        []ClusterView
	Selection       *selection.Set
	OpportunityOnly bool
}

// handleClustersPage renders the clusters page. Suggestions are fetched
// on demand.
func (s *Server) handleClustersPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "clusters", PageData{
		Title:   "Clusters",
		Active:  "clusters",
		Content: ClustersData{OpportunityOnly: r.URL.Query().Get("opportunity") == "true"},
	})
}

// handleClustersSuggest asks the suggester for clusters and renders them all
// selected.
func (s *Server) handleClustersSuggest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	opportunityOnly := r.FormValue("opportunity") == "true"
	suggested, err := s.clusters.Suggest(r.Context(), domain.SuggestClustersRequest{OpportunityOnly: opportunityOnly})
	if err != nil {
		s.renderError(w, err)
		return
	}

	data, err := s.clusterData(r.Context(), suggested)
	if err != nil {
		s.renderError(w, err)
		return
	}
	data.OpportunityOnly = opportunityOnly
	data.Selection.SelectAll()
	s.renderFragment(w, "clusters", "cluster_list", data)
}

// handleClustersSelect applies a selection action to the suggestions.
func (s *Server) handleClustersSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	suggested := clustersFromForm(r)
	set := selectionFromForm(r, clusterIDs(suggested))
	suggested = editClusters(r, suggested, set)

	data, err := s.clusterData(r.Context(), suggested)
	if err != nil {
		s.renderError(w, err)
		return
	}
	data.OpportunityOnly = r.FormValue("opportunity") == "true"
	data.Selection = set
	s.renderFragment(w, "clusters", "cluster_list", data)
}

// editClusters applies the "discard" and "remove_query" actions for the
// cluster named by "id". A cluster whose last query is removed is discarded.
func editClusters(r *http.Request, suggested []domain.Cluster, set *selection.Set) []domain.Cluster {
	id := r.FormValue("id")
	switch r.FormValue("action") {
	case "discard":
	case "remove_query":
		qid := r.FormValue("query")
		i := slices.IndexFunc(suggested, func(c domain.Cluster) bool { return c.ID == id })
		if i < 0 {
			return suggested
		}
		suggested[i].QueryIDs = slices.DeleteFunc(suggested[i].QueryIDs, func(q string) bool { return q == qid })
		if len(suggested[i].QueryIDs) > 0 {
			return suggested
		}
	default:
		return suggested
	}

	set.Remove(id)
	return slices.DeleteFunc(suggested, func(c domain.Cluster) bool { return c.ID == id })
}

func clusterIDs(clusters []domain.Cluster) []string {
	ids := make([]string, len(clusters))
	for i, c := range clusters {
		ids[i] = c.ID
	}
	return ids
}

// handleClustersAccept turns the selected suggestions into groups.
func (s *Server) handleClustersAccept(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderMessage(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	selected := make(map[string]bool)
	for _, id := range r.Form["selected"] {
		selected[id] = true
	}
	var req domain.AcceptClustersRequest
	for _, c := range clustersFromForm(r) {
		if selected[c.ID] {
			req.Clusters = append(req.Clusters, domain.AcceptedCluster{Name: c.Name, QueryIDs: c.QueryIDs})
		}
	}
	if len(req.Clusters) == 0 {
		s.renderMessage(w, "Select at least one cluster.", http.StatusBadRequest)
		return
	}

	groups, err := s.clusters.Accept(r.Context(), currentUser(r).ID, req)
	if err != nil {
		s.renderError(w, err)
		return
	}

	hxRedirect(w, "/groups?notice="+url.QueryEscape("Created "+strconv.Itoa(len(groups))+" groups from clusters."))
}

// clusterData attaches member queries and fresh metrics to clusters.
func (s *Server) clusterData(ctx context.Context, clusters []domain.Cluster) (*ClustersData, error) {
	members, err := s.clusters.Members(ctx, clusters)
	if err != nil {
		return nil, err
	}

	views := make([]ClusterView, 0, len(clusters))
	ids := make([]string, 0, len(clusters))
	for _, c := range clusters {
		v := ClusterView{Cluster: c, IDList: strings.Join(c.QueryIDs, ",")}
		for _, id := range c.QueryIDs {
			if q, ok := members[id]; ok {
				v.Queries = append(v.Queries, q)
			}
		}
		v.Metrics = aggregate.Compute(v.Queries)
		views = append(views, v)
		ids = append(ids, c.ID)
	}
	return &ClustersData{Clusters: views, Selection: selection.NewSet(ids)}, nil
}

// clustersFromForm reads back the suggestions rendered into the list form.
// Each cluster posts "cluster" (its id), "name_<id>" and "ids_<id>".
func clustersFromForm(r *http.Request) []domain.Cluster {
	var out []domain.Cluster
	for _, id := range r.Form["cluster"] {
		var queryIDs []string
		for _, qid := range strings.Split(r.FormValue("ids_"+id), ",") {
			if qid = strings.TrimSpace(qid); qid != "" {
				queryIDs = append(queryIDs, qid)
			}
		}
		out = append(out, domain.Cluster{
			ID:       id,
			Name:     strings.TrimSpace(r.FormValue("name_" + id)),
			QueryIDs: queryIDs,
		})
	}
	return out
}
