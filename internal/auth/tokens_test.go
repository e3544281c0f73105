package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLTokenStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "u1", Email: "a@example.com"}))

	tokens := NewSQLTokenStore(store)
	token, err := tokens.Issue(ctx, "u1", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, err := tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = tokens.Consume(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestSQLTokenStore_Expiry(t *testing.T) {
	ctx := context.Background()
	tokens := NewSQLTokenStore(memory.New())
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }

	token, err := tokens.Issue(ctx, "u1", time.Hour)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func setupTestRedis(t *testing.T) (*RedisTokenStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisTokenStore(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestRedisTokenStore(t *testing.T) {
	tokens, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, tokens.Ping(ctx))

	token, err := tokens.Issue(ctx, "u1", time.Hour)
	require.NoError(t, err)

	// Only the hash is used as key.
	assert.False(t, s.Exists("reset:"+token))
	assert.True(t, s.Exists("reset:"+HashToken(token)))

	userID, err := tokens.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRedisTokenStore_Expiry(t *testing.T) {
	tokens, s := setupTestRedis(t)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, "u1", time.Minute)
	require.NoError(t, err)

	s.FastForward(2 * time.Minute)

	_, err = tokens.Consume(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestNewRedisTokenStore_BadURL(t *testing.T) {
	_, err := NewRedisTokenStore(context.Background(), "not a url")
	assert.Error(t, err)
}
