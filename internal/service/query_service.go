package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/search"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/bcnelson/seo-insights/internal/validation"
	"go.uber.org/zap"
)

// Query listing limits.
const (
	DefaultQueryLimit = 50
	MaxQueryLimit     = 1000
)

// QueryService lists and imports query records.
type QueryService struct {
	store    storage.Storage
	searcher search.Searcher
	index    *IndexService
	logger   *zap.Logger
}

// NewQueryService creates a new QueryService. index may be nil.
func NewQueryService(store storage.Storage, searcher search.Searcher, index *IndexService, logger *zap.Logger) *QueryService {
	return &QueryService{store: store, searcher: searcher, index: index, logger: logger}
}

// List returns one page of queries matching filter.
func (s *QueryService) List(ctx context.Context, filter domain.QueryFilter) (*domain.QueryPage, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Sort != "" {
		if _, ok := storage.QuerySortColumns[filter.Sort]; !ok {
			var errs validation.ValidationErrors
			errs.Add("sort", filter.Sort, "unknown sort key")
			return nil, errs
		}
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultQueryLimit
	case filter.Limit > MaxQueryLimit:
		filter.Limit = MaxQueryLimit
	}
	filter.Offset = max(filter.Offset, 0)

	queries, total, err := s.searcher.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("searching queries: %w", err)
	}
	if queries == nil {
		queries = []*domain.Query{}
	}
	return &domain.QueryPage{
		Data:   queries,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Upsert validates and stores queries, deriving CTR and the opportunity flag,
// and schedules a search reindex.
func (s *QueryService) Upsert(ctx context.Context, queries []*domain.Query) (int, error) {
	if len(queries) == 0 {
		var errs validation.ValidationErrors
		errs.Add("queries", "", "at least one query is required")
		return 0, errs
	}

	var errs validation.ValidationErrors
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i, q := range queries {
		if q == nil {
			errs.Add(fmt.Sprintf("[%d]", i), "", "query is required")
			continue
		}
		if err := validation.ValidateQuery(q); err != nil {
			fieldErrs, _ := validation.AsValidationErrors(err)
			for _, fe := range fieldErrs {
				errs.Add(fmt.Sprintf("[%d].%s", i, fe.Field), fe.Value, fe.Message)
			}
			continue
		}
		q.Normalize()
		if q.Date.IsZero() {
			q.Date = now
		}
		q.Date = q.Date.UTC().Truncate(24 * time.Hour)
		if q.CreatedAt.IsZero() {
			q.CreatedAt = now
		}
	}
	if errs.HasErrors() {
		return 0, errs
	}

	n, err := s.store.UpsertQueries(ctx, queries)
	if err != nil {
		return 0, fmt.Errorf("upserting queries: %w", err)
	}
	s.logger.Info("queries upserted", zap.Int("count", n))
	if s.index != nil {
		s.index.TriggerReindex()
	}
	return n, nil
}
