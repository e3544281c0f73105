package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// meiliSortAttributes maps query sort keys to document attributes.
var meiliSortAttributes = map[string]string{
	domain.QuerySortImpressions: "impressions",
	domain.QuerySortClicks:      "clicks",
	domain.QuerySortCTR:         "ctr",
	domain.QuerySortPosition:    "avgPosition",
	domain.QuerySortText:        "queryText",
}

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	index   string
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client, configures the index and starts a
// health loop. An unreachable server is not an error: the searcher reports
// unhealthy until it recovers.
func NewMeili(url, apiKey, index string, interval time.Duration, logger *zap.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		logger.Warn("search: meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop(interval)
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        m.index,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("search: create index (may already exist)", zap.String("index", m.index), zap.Error(err))
	}

	index := m.client.Index(m.index)
	filterable := []interface{}{"isOpportunity"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search: update filterable attributes", zap.Error(err))
	}
	searchable := []string{"queryText", "url"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search: update searchable attributes", zap.Error(err))
	}
	sortable := []string{"impressions", "clicks", "ctr", "avgPosition", "queryText", "id"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		m.logger.Warn("search: update sortable attributes", zap.Error(err))
	}
}

func (m *Meili) healthLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(filter.Limit)
	if limit <= 0 {
		limit = 1000
	}
	attr, ok := meiliSortAttributes[filter.Sort]
	if !ok {
		attr = "impressions"
	}
	dir := "asc"
	if filter.Descending {
		dir = "desc"
	}

	req := &meili.SearchRequest{
		Limit:  limit,
		Offset: int64(max(filter.Offset, 0)),
		Sort:   []string{attr + ":" + dir, "id:asc"},
	}
	if filter.OpportunityOnly {
		req.Filter = "isOpportunity = true"
	}

	resp, err := m.client.Index(m.index).SearchWithContext(ctx, filter.Search, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("meilisearch search: %w", ctx.Err())
		}
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	queries := make([]*domain.Query, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		q, err := decodeHit(hit)
		if err != nil {
			return nil, 0, err
		}
		queries = append(queries, q)
	}
	return queries, int(resp.EstimatedTotalHits), nil
}

func decodeHit(hit meili.Hit) (*domain.Query, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return nil, fmt.Errorf("encode hit: %w", err)
	}
	var q domain.Query
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode hit: %w", err)
	}
	return &q, nil
}

// IndexQueries adds or replaces queries in the index.
func (m *Meili) IndexQueries(ctx context.Context, queries []*domain.Query) error {
	if len(queries) == 0 {
		return nil
	}
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if _, err := m.client.Index(m.index).AddDocumentsWithContext(ctx, queries, nil); err != nil {
		return fmt.Errorf("meilisearch index: %w", err)
	}
	return nil
}
