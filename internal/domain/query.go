package domain

import "time"

// Opportunity thresholds. A query that is seen often, ranks on the first two
// pages and still earns few clicks is flagged as an opportunity.
const (
	OpportunityMinImpressions = 1000
	OpportunityMaxCTR         = 0.02
	OpportunityMinPosition    = 5.0
	OpportunityMaxPosition    = 20.0
)

// Query is one search query with its performance numbers.
type Query struct {
	ID            string    `json:"id" db:"id" yaml:"id"`
	QueryText     string    `json:"queryText" db:"query_text" yaml:"query_text"`
	URL           string    `json:"url" db:"url" yaml:"url"`
	Impressions   int64     `json:"impressions" db:"impressions" yaml:"impressions"`
	Clicks        int64     `json:"clicks" db:"clicks" yaml:"clicks"`
	CTR           float64   `json:"ctr" db:"ctr" yaml:"-"`
	AvgPosition   float64   `json:"avgPosition" db:"avg_position" yaml:"avg_position"`
	IsOpportunity bool      `json:"isOpportunity" db:"is_opportunity" yaml:"-"`
	Date          time.Time `json:"date" db:"date" yaml:"date"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at" yaml:"-"`
}

// Normalize derives CTR and the opportunity flag from the raw counters.
func (q *Query) Normalize() {
	if q.Impressions > 0 {
		q.CTR = float64(q.Clicks) / float64(q.Impressions)
	} else {
		q.CTR = 0
	}
	q.IsOpportunity = q.Impressions >= OpportunityMinImpressions &&
		q.CTR < OpportunityMaxCTR &&
		q.AvgPosition >= OpportunityMinPosition &&
		q.AvgPosition <= OpportunityMaxPosition
}

// Query sort columns.
const (
	QuerySortImpressions = "impressions"
	QuerySortClicks      = "clicks"
	QuerySortCTR         = "ctr"
	QuerySortPosition    = "avg_position"
	QuerySortText        = "query_text"
)

// QueryFilter selects and orders queries for listing.
type QueryFilter struct {
	Search          string
	OpportunityOnly bool
	Sort            string
	Descending      bool
	Limit           int
	Offset          int
}

// QueryPage is one page of a query listing.
type QueryPage struct {
	Data   []*Query `json:"data"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// UpsertQueriesResponse reports how many queries were written.
type UpsertQueriesResponse struct {
	Upserted int `json:"upserted"`
}
