package service

import (
	"context"
	"testing"

	"github.com/bcnelson/seo-insights/internal/clusters"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingSuggester returns one cluster of every query it was given.
type recordingSuggester struct {
	got []*domain.Query
}

func (r *recordingSuggester) Name() string { return "recording" }

func (r *recordingSuggester) Suggest(ctx context.Context, queries []*domain.Query) ([]domain.Cluster, error) {
	r.got = queries
	ids := make([]string, len(queries))
	for i, q := range queries {
		ids[i] = q.ID
	}
	return []domain.Cluster{{Name: "Everything", QueryIDs: ids}}, nil
}

func newClusterService(s storage.Storage, suggester clusters.Suggester, maxQueries int) *ClusterService {
	return NewClusterService(s, newGroupService(s), suggester, maxQueries, zap.NewNop())
}

func TestClusterService_SuggestLexical(t *testing.T) {
	svc := newClusterService(seededMemory(t), clusters.NewLexical(0), 0)

	got, err := svc.Suggest(context.Background(), domain.SuggestClustersRequest{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Running queries", got[0].Name)
	assert.Equal(t, []string{"q1", "q2"}, got[0].QueryIDs)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, int64(6200), got[0].Metrics.Impressions)
	assert.InDelta(t, 170.0/6200.0, got[0].Metrics.CTR, 1e-12)
}

func TestClusterService_Pool(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSuggester{}
	svc := newClusterService(seededMemory(t), rec, 2)

	_, err := svc.Suggest(ctx, domain.SuggestClustersRequest{})
	require.NoError(t, err)
	require.Len(t, rec.got, 2, "capped at maxQueries")
	assert.Equal(t, "q1", rec.got[0].ID, "highest impressions first")
	assert.Equal(t, "q2", rec.got[1].ID)

	_, err = svc.Suggest(ctx, domain.SuggestClustersRequest{QueryIDs: []string{"q3", "q4", "missing"}})
	require.NoError(t, err)
	require.Len(t, rec.got, 2)
	assert.Equal(t, "q3", rec.got[0].ID)

	got, err := svc.Suggest(ctx, domain.SuggestClustersRequest{OpportunityOnly: true})
	require.NoError(t, err)
	require.Len(t, rec.got, 1)
	assert.Equal(t, "q1", rec.got[0].ID)
	assert.True(t, rec.got[0].IsOpportunity)
	assert.Equal(t, int64(5000), got[0].Metrics.Impressions)
}

func TestClusterService_Accept(t *testing.T) {
	s := seeded(t)
	svc := newClusterService(s, clusters.NewLexical(0), 0)
	ctx := context.Background()

	groups, err := svc.Accept(ctx, "u1", domain.AcceptClustersRequest{Clusters: []domain.AcceptedCluster{
		{Name: "Running", QueryIDs: []string{"q1", "q2"}},
		{Name: "Sneakers", QueryIDs: []string{"q3", "q4"}},
	}})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.True(t, g.AIGenerated)
		assert.Equal(t, 2, g.QueryCount)
	}

	listed, err := newGroupService(s).List(ctx, "u1", "", false)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestClusterService_AcceptIsAtomic(t *testing.T) {
	s := seeded(t)
	svc := newClusterService(s, clusters.NewLexical(0), 0)
	ctx := context.Background()

	_, err := svc.Accept(ctx, "u1", domain.AcceptClustersRequest{Clusters: []domain.AcceptedCluster{
		{Name: "Running", QueryIDs: []string{"q1", "q2"}},
		{Name: "Running", QueryIDs: []string{"q3"}},
	}})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	listed, err := newGroupService(s).List(ctx, "u1", "", false)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestClusterService_AcceptValidation(t *testing.T) {
	svc := newClusterService(seededMemory(t), clusters.NewLexical(0), 0)

	_, err := svc.Accept(context.Background(), "u1", domain.AcceptClustersRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
