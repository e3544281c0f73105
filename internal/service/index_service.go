package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bcnelson/seo-insights/internal/search"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/bcnelson/seo-insights/internal/telemetry"
	"go.uber.org/zap"
)

// IndexService copies the query table into the search index.
type IndexService struct {
	store    storage.Storage
	indexer  search.Indexer
	debounce time.Duration
	enabled  bool
	logger   *zap.Logger

	mu         sync.Mutex
	timer      *time.Timer
	pending    bool
	lastResult *ReindexResult
}

// ReindexResult describes one reindex run.
type ReindexResult struct {
	Indexed  int       `json:"indexed"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Finished time.Time `json:"finishedAt"`
}

// NewIndexService creates a new IndexService. When enabled is false,
// TriggerReindex does nothing and only ForceReindex writes to the index.
func NewIndexService(store storage.Storage, indexer search.Indexer, debounce time.Duration, enabled bool, logger *zap.Logger) *IndexService {
	return &IndexService{
		store:    store,
		indexer:  indexer,
		debounce: debounce,
		enabled:  enabled,
		logger:   logger,
	}
}

// TriggerReindex schedules a debounced reindex.
// Multiple triggers within the debounce period result in a single run.
func (s *IndexService) TriggerReindex() {
	if !s.enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}

	s.pending = true
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()

		if _, err := s.reindex(context.Background()); err != nil {
			s.logger.Error("auto reindex failed", zap.Error(err))
		}
	})
}

// ForceReindex cancels any pending run and reindexes immediately.
func (s *IndexService) ForceReindex(ctx context.Context) (*ReindexResult, error) {
	s.Stop()
	return s.reindex(ctx)
}

// Pending reports whether a debounced run is scheduled.
func (s *IndexService) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastResult returns the most recent run, or nil.
func (s *IndexService) LastResult() *ReindexResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// Stop cancels a pending debounced run.
func (s *IndexService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = false
}

func (s *IndexService) reindex(ctx context.Context) (*ReindexResult, error) {
	queries, err := s.store.ListAllQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading queries: %w", err)
	}

	result := &ReindexResult{Indexed: len(queries), Status: "success"}
	if err := s.indexer.IndexQueries(ctx, queries); err != nil {
		result.Indexed = 0
		result.Status = "failed"
		result.Error = err.Error()
	}
	result.Finished = time.Now().UTC()

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	telemetry.Reindexes.WithLabelValues(result.Status).Inc()
	if result.Status == "failed" {
		s.logger.Warn("reindex failed", zap.String("error", result.Error))
	} else {
		s.logger.Info("reindex complete", zap.Int("indexed", result.Indexed))
	}
	return result, nil
}
