package storage

import (
	"context"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, userID, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Password resets. ConsumePasswordReset marks the token used and returns
	// its user id, or domain.ErrInvalidToken when the token is unknown,
	// already used or expired at now.
	CreatePasswordReset(ctx context.Context, reset *domain.PasswordReset) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error)

	// Queries
	UpsertQueries(ctx context.Context, queries []*domain.Query) (int, error)
	GetQuery(ctx context.Context, id string) (*domain.Query, error)
	GetQueries(ctx context.Context, ids []string) ([]*domain.Query, error)
	ListQueries(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error)
	ListAllQueries(ctx context.Context) ([]*domain.Query, error)

	// Groups
	CreateGroup(ctx context.Context, group *domain.Group) error
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	ListGroups(ctx context.Context, userID string) ([]*domain.Group, error)
	UpdateGroup(ctx context.Context, group *domain.Group) error
	DeleteGroup(ctx context.Context, id string) error
	DeleteAllGroupsForUser(ctx context.Context, userID string) (int, error)

	// Group items. AddGroupItems ignores queries that are already members
	// and returns how many were actually inserted.
	AddGroupItems(ctx context.Context, groupID string, queryIDs []string) (int, error)
	RemoveGroupItem(ctx context.Context, groupID, queryID string) error
	ListGroupQueries(ctx context.Context, groupID string) ([]*domain.Query, error)
	CountGroupItems(ctx context.Context, groupID string) (int, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}

// WithTx runs fn in a transaction, committing on success and rolling back
// on error.
func WithTx(ctx context.Context, s Storage, fn func(tx Transaction) error) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
