package search

import (
	"context"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/telemetry"
	"go.uber.org/zap"
)

// Fallback tries the primary searcher while it is healthy and falls back to
// the secondary otherwise or on error.
type Fallback struct {
	primary   Searcher
	secondary Searcher
	logger    *zap.Logger
}

// NewFallback creates a fallback searcher. primary may be nil.
func NewFallback(primary, secondary Searcher, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Search(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	if f.primary != nil {
		if f.primary.Healthy() {
			results, total, err := f.primary.Search(ctx, filter)
			if err == nil {
				return results, total, nil
			}
			f.logger.Warn("search: primary backend failed, falling back", zap.Error(err))
		}
		telemetry.SearchFallbacks.Inc()
	}
	return f.secondary.Search(ctx, filter)
}

// Healthy reports whether any backend can serve searches.
func (f *Fallback) Healthy() bool {
	return (f.primary != nil && f.primary.Healthy()) || f.secondary.Healthy()
}
