// Package clusters proposes groups of related queries.
package clusters

import (
	"context"

	"github.com/bcnelson/seo-insights/internal/domain"
)

// Suggester proposes clusters for a pool of queries. Returned clusters carry
// a name and query ids only; each query appears in at most one cluster.
type Suggester interface {
	Name() string
	Suggest(ctx context.Context, queries []*domain.Query) ([]domain.Cluster, error)
}
