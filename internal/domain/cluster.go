package domain

// Cluster is a suggested group: a name and the queries it would contain.
type Cluster struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	QueryIDs []string     `json:"queryIds"`
	Metrics  GroupMetrics `json:"metrics"`
}

// SuggestClustersRequest narrows the pool of queries to cluster.
// An empty QueryIDs list means every query (optionally only opportunities).
type SuggestClustersRequest struct {
	QueryIDs        []string `json:"queryIds" validate:"omitempty,max=1000,dive,required"`
	OpportunityOnly bool     `json:"opportunityOnly"`
}

// AcceptClustersRequest turns selected suggestions into groups.
type AcceptClustersRequest struct {
	Clusters []AcceptedCluster `json:"clusters" validate:"required,min=1,max=50,dive"`
}

// AcceptedCluster is one suggestion the user kept, possibly renamed or trimmed.
type AcceptedCluster struct {
	Name     string   `json:"name" validate:"required,max=255"`
	QueryIDs []string `json:"queryIds" validate:"required,min=1,dive,required"`
}
