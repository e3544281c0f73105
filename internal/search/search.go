// Package search finds queries by text through a pluggable backend.
package search

import (
	"context"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
)

// Searcher lists queries matching a filter and reports the total number of
// matches before paging.
type Searcher interface {
	Search(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error)
	Healthy() bool
}

// Indexer pushes queries into a search index.
type Indexer interface {
	IndexQueries(ctx context.Context, queries []*domain.Query) error
	Healthy() bool
}

// StoreSearcher searches the relational store directly.
type StoreSearcher struct {
	store storage.Storage
}

// NewStoreSearcher creates a searcher backed by store.
func NewStoreSearcher(store storage.Storage) *StoreSearcher {
	return &StoreSearcher{store: store}
}

func (s *StoreSearcher) Search(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	return s.store.ListQueries(ctx, filter)
}

// Healthy is always true; store errors surface from Search.
func (s *StoreSearcher) Healthy() bool { return true }

// IndexQueries is a no-op: the store is its own index.
func (s *StoreSearcher) IndexQueries(ctx context.Context, queries []*domain.Query) error {
	return nil
}
