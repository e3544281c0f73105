// Package aggregate computes group metrics from member queries.
package aggregate

import "github.com/bcnelson/seo-insights/internal/domain"

// Compute sums impressions and clicks over queries, derives CTR from the
// totals and averages position with equal weight per query.
// CTR is 0 when there are no impressions; AvgPosition is 0 for no queries.
func Compute(queries []*domain.Query) domain.GroupMetrics {
	var m domain.GroupMetrics
	if len(queries) == 0 {
		return m
	}

	var positionSum float64
	for _, q := range queries {
		m.Impressions += q.Impressions
		m.Clicks += q.Clicks
		positionSum += q.AvgPosition
	}

	if m.Impressions > 0 {
		m.CTR = float64(m.Clicks) / float64(m.Impressions)
	}
	m.AvgPosition = positionSum / float64(len(queries))
	return m
}

// Summary returns the member count together with the metrics.
func Summary(queries []*domain.Query) (int, domain.GroupMetrics) {
	return len(queries), Compute(queries)
}

// Dto builds the API view of a group from its current members.
func Dto(group *domain.Group, members []*domain.Query) *domain.GroupDto {
	count, metrics := Summary(members)
	return &domain.GroupDto{
		Group:      *group,
		QueryCount: count,
		Metrics:    metrics,
	}
}
