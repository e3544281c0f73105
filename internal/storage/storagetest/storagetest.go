// Package storagetest holds behaviour tests shared by every storage.Storage
// implementation.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) storage.Storage

// Run executes the shared suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("APIKeys", func(t *testing.T) { testAPIKeys(t, newStore(t)) })
	t.Run("PasswordResets", func(t *testing.T) { testPasswordResets(t, newStore(t)) })
	t.Run("Queries", func(t *testing.T) { testQueries(t, newStore(t)) })
	t.Run("Groups", func(t *testing.T) { testGroups(t, newStore(t)) })
	t.Run("GroupItems", func(t *testing.T) { testGroupItems(t, newStore(t)) })
	t.Run("Transaction", func(t *testing.T) { testTransaction(t, newStore(t)) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// User returns a user fixture.
func User(id, email string) *domain.User {
	ts := now()
	return &domain.User{ID: id, Email: email, PasswordHash: "hash", CreatedAt: ts, UpdatedAt: ts}
}

// Query returns a normalized query fixture.
func Query(id, text string, impressions, clicks int64, position float64) *domain.Query {
	q := &domain.Query{
		ID:          id,
		QueryText:   text,
		URL:         "https://example.com/" + id,
		Impressions: impressions,
		Clicks:      clicks,
		AvgPosition: position,
		Date:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   now(),
	}
	q.Normalize()
	return q
}

// Group returns a group fixture.
func Group(id, userID, name string) *domain.Group {
	ts := now()
	return &domain.Group{ID: id, UserID: userID, Name: name, CreatedAt: ts, UpdatedAt: ts}
}

func testUsers(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, User("u1", "qa@example.com")))
	assert.ErrorIs(t, s.CreateUser(ctx, User("u2", "qa@example.com")), domain.ErrAlreadyExists)

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "qa@example.com", u.Email)

	u, err = s.GetUserByEmail(ctx, "QA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	require.NoError(t, s.UpdateUserPassword(ctx, "u1", "newhash"))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "newhash", u.PasswordHash)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.UpdateUserPassword(ctx, "missing", "x"), domain.ErrNotFound)
}

func testAPIKeys(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("u1", "a@example.com")))
	require.NoError(t, s.CreateUser(ctx, User("u2", "b@example.com")))

	key := &domain.APIKey{ID: "k1", UserID: "u1", Name: "ci", KeyHash: "h1", KeyPrefix: "seo_12345678", CreatedAt: now()}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	got, err := s.GetAPIKeyByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Nil(t, got.LastUsedAt)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, "k1"))
	got, err = s.GetAPIKeyByHash(ctx, "h1")
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsedAt)

	keys, err := s.ListAPIKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	keys, err = s.ListAPIKeys(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, keys)

	count, err := s.CountAPIKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Another user cannot delete the key.
	assert.ErrorIs(t, s.DeleteAPIKey(ctx, "u2", "k1"), domain.ErrNotFound)
	require.NoError(t, s.DeleteAPIKey(ctx, "u1", "k1"))
	_, err = s.GetAPIKeyByHash(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPasswordResets(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("u1", "a@example.com")))

	ts := now()
	require.NoError(t, s.CreatePasswordReset(ctx, &domain.PasswordReset{
		TokenHash: "t1", UserID: "u1", ExpiresAt: ts.Add(time.Hour), CreatedAt: ts,
	}))
	require.NoError(t, s.CreatePasswordReset(ctx, &domain.PasswordReset{
		TokenHash: "expired", UserID: "u1", ExpiresAt: ts.Add(-time.Minute), CreatedAt: ts.Add(-time.Hour),
	}))

	userID, err := s.ConsumePasswordReset(ctx, "t1", ts)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = s.ConsumePasswordReset(ctx, "t1", ts)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "tokens are single use")

	_, err = s.ConsumePasswordReset(ctx, "expired", ts)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = s.ConsumePasswordReset(ctx, "unknown", ts)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func seedQueries(t *testing.T, s storage.Storage) {
	t.Helper()
	n, err := s.UpsertQueries(context.Background(), []*domain.Query{
		Query("q1", "running shoes", 5000, 50, 8.2),
		Query("q2", "Trail running shoes", 1200, 120, 3.1),
		Query("q3", "buy sneakers 50%_off", 300, 3, 14.0),
		Query("q4", "sneaker cleaning", 0, 0, 22.5),
	})
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func ids(queries []*domain.Query) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.ID
	}
	return out
}

func testQueries(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	seedQueries(t, s)

	q, err := s.GetQuery(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "running shoes", q.QueryText)
	assert.InDelta(t, 0.01, q.CTR, 1e-9)
	assert.True(t, q.IsOpportunity)
	assert.Equal(t, 2024, q.Date.Year())

	_, err = s.GetQuery(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Upsert updates in place.
	updated := Query("q1", "running shoes", 6000, 60, 7.0)
	_, err = s.UpsertQueries(ctx, []*domain.Query{updated})
	require.NoError(t, err)
	q, err = s.GetQuery(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), q.Impressions)

	many, err := s.GetQueries(ctx, []string{"q3", "missing", "q1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "q1"}, ids(many))

	t.Run("default sort is impressions", func(t *testing.T) {
		page, total, err := s.ListQueries(ctx, domain.QueryFilter{Descending: true})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, ids(page))
	})

	t.Run("search is case insensitive substring", func(t *testing.T) {
		page, total, err := s.ListQueries(ctx, domain.QueryFilter{Search: "RUNNING", Sort: domain.QuerySortText})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"q1", "q2"}, ids(page))
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		page, total, err := s.ListQueries(ctx, domain.QueryFilter{Search: "50%_"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"q3"}, ids(page))
	})

	t.Run("opportunity only", func(t *testing.T) {
		page, total, err := s.ListQueries(ctx, domain.QueryFilter{OpportunityOnly: true})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"q1"}, ids(page))
	})

	t.Run("paging keeps total", func(t *testing.T) {
		page, total, err := s.ListQueries(ctx, domain.QueryFilter{Sort: domain.QuerySortPosition, Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"q1", "q3"}, ids(page))
	})

	all, err := s.ListAllQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func testGroups(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("u1", "a@example.com")))
	require.NoError(t, s.CreateUser(ctx, User("u2", "b@example.com")))

	require.NoError(t, s.CreateGroup(ctx, Group("g1", "u1", "Brand")))
	require.NoError(t, s.CreateGroup(ctx, Group("g2", "u1", "Apparel")))
	// Names are unique per user only.
	require.NoError(t, s.CreateGroup(ctx, Group("g3", "u2", "Brand")))
	assert.ErrorIs(t, s.CreateGroup(ctx, Group("g4", "u1", "Brand")), domain.ErrAlreadyExists)

	groups, err := s.ListGroups(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Apparel", groups[0].Name)
	assert.Equal(t, "Brand", groups[1].Name)

	g, err := s.GetGroup(ctx, "g1")
	require.NoError(t, err)
	g.Name = "Apparel"
	assert.ErrorIs(t, s.UpdateGroup(ctx, g), domain.ErrAlreadyExists)

	g.Name = "Brand terms"
	g.UpdatedAt = now().Add(time.Second)
	require.NoError(t, s.UpdateGroup(ctx, g))
	g, err = s.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Brand terms", g.Name)

	assert.ErrorIs(t, s.UpdateGroup(ctx, Group("missing", "u1", "x")), domain.ErrNotFound)

	require.NoError(t, s.DeleteGroup(ctx, "g2"))
	assert.ErrorIs(t, s.DeleteGroup(ctx, "g2"), domain.ErrNotFound)

	n, err := s.DeleteAllGroupsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	groups, err = s.ListGroups(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func testGroupItems(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("u1", "a@example.com")))
	seedQueries(t, s)
	require.NoError(t, s.CreateGroup(ctx, Group("g1", "u1", "Shoes")))
	require.NoError(t, s.CreateGroup(ctx, Group("g2", "u1", "Other")))

	added, err := s.AddGroupItems(ctx, "g1", []string{"q2", "q1"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Already present members are not counted.
	added, err = s.AddGroupItems(ctx, "g1", []string{"q1", "q3"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// The same query can belong to several groups.
	added, err = s.AddGroupItems(ctx, "g2", []string{"q1"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	_, err = s.AddGroupItems(ctx, "g1", []string{"missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.AddGroupItems(ctx, "nope", []string{"q1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	members, err := s.ListGroupQueries(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "q1", "q2"}, ids(members), "ordered by query text")

	count, err := s.CountGroupItems(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, s.RemoveGroupItem(ctx, "g1", "q1"))
	assert.ErrorIs(t, s.RemoveGroupItem(ctx, "g1", "q1"), domain.ErrNotFound)
	assert.ErrorIs(t, s.RemoveGroupItem(ctx, "g1", "q4"), domain.ErrNotFound)

	count, err = s.CountGroupItems(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = s.CountGroupItems(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "removal from one group leaves others intact")

	require.NoError(t, s.DeleteGroup(ctx, "g1"))
	_, err = s.ListGroupQueries(ctx, "g1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetQuery(ctx, "q2")
	assert.NoError(t, err, "deleting a group keeps its queries")
}

func testTransaction(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, User("u1", "a@example.com")))
	seedQueries(t, s)

	err := storage.WithTx(ctx, s, func(tx storage.Transaction) error {
		if err := tx.CreateGroup(ctx, Group("g1", "u1", "Tx")); err != nil {
			return err
		}
		_, err := tx.AddGroupItems(ctx, "g1", []string{"q1", "q2"})
		return err
	})
	require.NoError(t, err)

	count, err := s.CountGroupItems(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	failure := fmt.Errorf("boom")
	err = storage.WithTx(ctx, s, func(tx storage.Transaction) error {
		return failure
	})
	assert.ErrorIs(t, err, failure)
}
