package service

import (
	"context"
	"fmt"

	"github.com/bcnelson/seo-insights/internal/aggregate"
	"github.com/bcnelson/seo-insights/internal/clusters"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/bcnelson/seo-insights/internal/telemetry"
	"github.com/bcnelson/seo-insights/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClusterService suggests groups of related queries and turns accepted
// suggestions into groups.
type ClusterService struct {
	store      storage.Storage
	groups     *GroupService
	suggester  clusters.Suggester
	maxQueries int
	logger     *zap.Logger
}

// NewClusterService creates a new ClusterService. At most maxQueries queries,
// the ones with the most impressions, are sent to the suggester.
func NewClusterService(store storage.Storage, groups *GroupService, suggester clusters.Suggester, maxQueries int, logger *zap.Logger) *ClusterService {
	return &ClusterService{
		store:      store,
		groups:     groups,
		suggester:  suggester,
		maxQueries: maxQueries,
		logger:     logger,
	}
}

// Suggest clusters the requested queries, or every query when none are
// named. Each suggestion carries the metrics its members would have as a
// group.
func (s *ClusterService) Suggest(ctx context.Context, req domain.SuggestClustersRequest) ([]domain.Cluster, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var pool []*domain.Query
	var err error
	if ids := validation.DedupeIDs(req.QueryIDs); len(ids) > 0 {
		pool, err = s.store.GetQueries(ctx, ids)
	} else {
		pool, err = s.store.ListAllQueries(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("loading queries: %w", err)
	}
	if req.OpportunityOnly {
		kept := pool[:0]
		for _, q := range pool {
			if q.IsOpportunity {
				kept = append(kept, q)
			}
		}
		pool = kept
	}
	storage.SortQueries(pool, domain.QuerySortImpressions, true)
	if s.maxQueries > 0 && len(pool) > s.maxQueries {
		pool = pool[:s.maxQueries]
	}

	suggested, err := s.suggester.Suggest(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("suggesting clusters: %w", err)
	}
	telemetry.ClusterSuggestions.WithLabelValues(s.suggester.Name()).Inc()

	byID := make(map[string]*domain.Query, len(pool))
	for _, q := range pool {
		byID[q.ID] = q
	}
	out := make([]domain.Cluster, 0, len(suggested))
	for _, c := range suggested {
		members := make([]*domain.Query, 0, len(c.QueryIDs))
		for _, id := range c.QueryIDs {
			if q, ok := byID[id]; ok {
				members = append(members, q)
			}
		}
		c.ID = uuid.New().String()
		c.Metrics = aggregate.Compute(members)
		out = append(out, c)
	}

	s.logger.Info("clusters suggested",
		zap.String("provider", s.suggester.Name()),
		zap.Int("pool", len(pool)),
		zap.Int("clusters", len(out)))
	return out, nil
}

// Members loads the queries referenced by clusters, keyed by id. Ids that no
// longer exist are left out.
func (s *ClusterService) Members(ctx context.Context, clusters []domain.Cluster) (map[string]*domain.Query, error) {
	var ids []string
	for _, c := range clusters {
		ids = append(ids, c.QueryIDs...)
	}
	queries, err := s.store.GetQueries(ctx, validation.DedupeIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("loading cluster members: %w", err)
	}
	byID := make(map[string]*domain.Query, len(queries))
	for _, q := range queries {
		byID[q.ID] = q
	}
	return byID, nil
}

// Accept creates one AI-generated group per accepted cluster. Either all
// groups are created or none are.
func (s *ClusterService) Accept(ctx context.Context, userID string, req domain.AcceptClustersRequest) ([]*domain.GroupDto, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	created := make([]*domain.GroupDto, 0, len(req.Clusters))
	err := storage.WithTx(ctx, s.store, func(tx storage.Transaction) error {
		for i, c := range req.Clusters {
			dto, err := s.groups.create(ctx, tx, userID, c.Name, c.QueryIDs, true)
			if err != nil {
				return fmt.Errorf("cluster %d: %w", i, err)
			}
			created = append(created, dto)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("clusters accepted", zap.String("user_id", userID), zap.Int("groups", len(created)))
	return created, nil
}
