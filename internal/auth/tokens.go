package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ResetTokenStore issues and redeems single-use password reset tokens.
type ResetTokenStore interface {
	// Issue creates a token for userID valid for ttl and returns it.
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
	// Consume redeems a token and returns its user id. Unknown, used and
	// expired tokens yield domain.ErrInvalidToken.
	Consume(ctx context.Context, token string) (string, error)
}

func newResetToken() (string, error) {
	return GenerateSecureString(32)
}

// SQLTokenStore keeps reset tokens in the password_resets table.
type SQLTokenStore struct {
	store storage.Storage
	now   func() time.Time
}

// NewSQLTokenStore creates a token store backed by storage.
func NewSQLTokenStore(store storage.Storage) *SQLTokenStore {
	return &SQLTokenStore{store: store, now: time.Now}
}

func (s *SQLTokenStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	now := s.now().UTC()
	err = s.store.CreatePasswordReset(ctx, &domain.PasswordReset{
		TokenHash: HashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	return token, nil
}

func (s *SQLTokenStore) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrInvalidToken
	}
	return s.store.ConsumePasswordReset(ctx, HashToken(token), s.now().UTC())
}

// RedisTokenStore keeps reset tokens in Redis with a TTL; consuming a token
// deletes it atomically.
type RedisTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenStore connects to redisURL and checks the connection.
func NewRedisTokenStore(ctx context.Context, redisURL string) (*RedisTokenStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisTokenStoreWithClient(client), nil
}

// NewRedisTokenStoreWithClient creates a store from an existing client.
func NewRedisTokenStoreWithClient(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, prefix: "reset:"}
}

func (s *RedisTokenStore) key(token string) string {
	return s.prefix + HashToken(token)
}

func (s *RedisTokenStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := newResetToken()
	if err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrInvalidToken
	}
	userID, err := s.client.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}

// Client returns the underlying connection for other Redis-backed state.
func (s *RedisTokenStore) Client() *redis.Client {
	return s.client
}

// Ping checks if Redis is reachable.
func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
