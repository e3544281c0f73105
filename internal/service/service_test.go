package service

import (
	"context"
	"testing"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/bcnelson/seo-insights/internal/storage/memory"
	sqlstore "github.com/bcnelson/seo-insights/internal/storage/sql"
	"github.com/bcnelson/seo-insights/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// seeded returns a store holding two users and the fixture queries.
// SQLite is used so transactions really roll back.
func seeded(t *testing.T) storage.Storage {
	t.Helper()
	s, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	seed(t, s)
	return s
}

func seededMemory(t *testing.T) storage.Storage {
	t.Helper()
	s := memory.New()
	seed(t, s)
	return s
}

func seed(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, storagetest.User("u1", "qa@example.com")))
	require.NoError(t, s.CreateUser(ctx, storagetest.User("u2", "other@example.com")))
	_, err := s.UpsertQueries(ctx, fixtureQueries())
	require.NoError(t, err)
}

func fixtureQueries() []*domain.Query {
	return []*domain.Query{
		storagetest.Query("q1", "running shoes", 5000, 50, 8.2),
		storagetest.Query("q2", "Trail running shoes", 1200, 120, 3.1),
		storagetest.Query("q3", "buy sneakers online", 300, 3, 14.0),
		storagetest.Query("q4", "sneaker cleaning", 0, 0, 22.5),
	}
}

func newGroupService(s storage.Storage) *GroupService {
	return NewGroupService(s, zap.NewNop())
}
