package seed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/mail"
	"github.com/bcnelson/seo-insights/internal/search"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/bcnelson/seo-insights/internal/storage/memory"
	"github.com/bcnelson/seo-insights/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLoader(t *testing.T, store *memory.Store) *Loader {
	t.Helper()
	logger := zap.NewNop()
	authSvc := service.NewAuthService(store, auth.NewSQLTokenStore(store),
		mail.NewLog(logger), service.AuthOptions{AllowSignup: false}, logger)
	querySvc := service.NewQueryService(store, search.NewStoreSearcher(store), nil, logger)
	return NewLoader(authSvc, querySvc, logger)
}

func TestParseFile(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)

	require.Len(t, f.Users, 1)
	assert.Equal(t, "qa@example.com", f.Users[0].Email)
	require.Len(t, f.Queries, 3)
	q := f.Queries[0]
	assert.Equal(t, "q-running-shoes", q.ID)
	assert.Equal(t, "running shoes", q.QueryText)
	assert.Equal(t, int64(5000), q.Impressions)
	assert.Equal(t, 8.2, q.AvgPosition)
	assert.Equal(t, 2024, q.Date.Year())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader("queries:\n  - id: a\n    ctr_typo: 1\n"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Queries)
}

func TestLoader_Load(t *testing.T) {
	store := memory.New()
	loader := newLoader(t, store)
	ctx := context.Background()

	f, err := ParseFile(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)

	res, err := loader.Load(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 1, res.UsersCreated)
	assert.Equal(t, 3, res.Queries)

	q, err := store.GetQuery(ctx, "q-running-shoes")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, q.CTR, 1e-12)
	assert.True(t, q.IsOpportunity)

	user, err := store.GetUserByEmail(ctx, "qa@example.com")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(user.PasswordHash, "qa-password-1"))

	// Loading twice keeps the user and rewrites the queries.
	f, err = ParseFile(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)
	res, err = loader.Load(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 0, res.UsersCreated)
	assert.Equal(t, 1, res.UsersExisting)
}

func TestLoader_InvalidQuery(t *testing.T) {
	loader := newLoader(t, memory.New())

	_, err := loader.Load(context.Background(), &File{Queries: []*domain.Query{
		{ID: "bad", QueryText: "bad", Impressions: 1, Clicks: 2, AvgPosition: 1},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoader_EmptyQueryEntry(t *testing.T) {
	f, err := Parse(strings.NewReader("queries:\n  - ~\n"))
	require.NoError(t, err)
	require.Len(t, f.Queries, 1)

	_, err = newLoader(t, memory.New()).Load(context.Background(), f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0 is empty")
}

func TestCleanupGroupsForUser(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, storagetest.User("u1", "qa@example.com")))
	require.NoError(t, store.CreateUser(ctx, storagetest.User("u2", "other@example.com")))
	require.NoError(t, store.CreateGroup(ctx, storagetest.Group("g1", "u1", "One")))
	require.NoError(t, store.CreateGroup(ctx, storagetest.Group("g2", "u1", "Two")))
	require.NoError(t, store.CreateGroup(ctx, storagetest.Group("g3", "u2", "Kept")))

	n, err := CleanupGroupsForUser(ctx, store, "qa@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := store.ListGroups(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, left, 1)

	_, err = CleanupGroupsForUser(ctx, store, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
