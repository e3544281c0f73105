package storage

import (
	"cmp"
	"sort"
	"strings"

	"github.com/bcnelson/seo-insights/internal/domain"
)

// QuerySortColumns maps accepted sort keys to column names.
// Unknown keys fall back to impressions.
var QuerySortColumns = map[string]string{
	domain.QuerySortImpressions: "impressions",
	domain.QuerySortClicks:      "clicks",
	domain.QuerySortCTR:         "ctr",
	domain.QuerySortPosition:    "avg_position",
	domain.QuerySortText:        "query_text",
}

// SortColumn returns the column for a sort key.
func SortColumn(key string) string {
	if col, ok := QuerySortColumns[key]; ok {
		return col
	}
	return QuerySortColumns[domain.QuerySortImpressions]
}

// SortQueries orders queries in place by the given key, breaking ties by id
// so paging is stable.
func SortQueries(queries []*domain.Query, key string, desc bool) {
	col := SortColumn(key)
	compare := func(a, b *domain.Query) int {
		switch col {
		case "clicks":
			return cmp.Compare(a.Clicks, b.Clicks)
		case "ctr":
			return cmp.Compare(a.CTR, b.CTR)
		case "avg_position":
			return cmp.Compare(a.AvgPosition, b.AvgPosition)
		case "query_text":
			return strings.Compare(strings.ToLower(a.QueryText), strings.ToLower(b.QueryText))
		default:
			return cmp.Compare(a.Impressions, b.Impressions)
		}
	}
	sort.SliceStable(queries, func(i, j int) bool {
		c := compare(queries[i], queries[j])
		if c == 0 {
			return queries[i].ID < queries[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// Page returns the window [offset, offset+limit) of queries.
// A limit <= 0 means no limit.
func Page(queries []*domain.Query, limit, offset int) []*domain.Query {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(queries) {
		return []*domain.Query{}
	}
	end := len(queries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return queries[offset:end]
}
