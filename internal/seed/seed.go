// Package seed loads fixture data from YAML files.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/service"
	"github.com/bcnelson/seo-insights/internal/storage"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the fixture format.
//
//	users:
//	  - email: qa@example.com
//	    password: secret-password
//	queries:
//	  - id: q1
//	    query_text: running shoes
//	    url: https://example.com/shoes
//	    impressions: 5000
//	    clicks: 50
//	    avg_position: 8.2
//	    date: 2024-05-01
type File struct {
	Users   []User          `yaml:"users"`
	Queries []*domain.Query `yaml:"queries"`
}

// User is a fixture account.
type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Result counts what a load wrote.
type Result struct {
	UsersCreated  int
	UsersExisting int
	Queries       int
}

// Parse decodes a fixture file. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return &f, nil
}

// ParseFile reads and decodes the fixture at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Loader writes fixtures through the services so the usual validation and
// derived fields apply.
type Loader struct {
	auth    *service.AuthService
	queries *service.QueryService
	logger  *zap.Logger
}

// NewLoader creates a new Loader.
func NewLoader(auth *service.AuthService, queries *service.QueryService, logger *zap.Logger) *Loader {
	return &Loader{auth: auth, queries: queries, logger: logger}
}

// Load creates missing users and upserts every query. Existing users keep
// their password.
func (l *Loader) Load(ctx context.Context, f *File) (*Result, error) {
	res := &Result{}
	for _, u := range f.Users {
		_, err := l.auth.CreateUser(ctx, u.Email, u.Password)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			res.UsersExisting++
		case err != nil:
			return res, fmt.Errorf("seeding user %s: %w", u.Email, err)
		default:
			res.UsersCreated++
		}
	}

	if len(f.Queries) > 0 {
		now := time.Now().UTC().Truncate(time.Microsecond)
		for i, q := range f.Queries {
			if q == nil {
				return res, fmt.Errorf("seeding queries: entry %d is empty", i)
			}
			q.CreatedAt = now
		}
		n, err := l.queries.Upsert(ctx, f.Queries)
		if err != nil {
			return res, fmt.Errorf("seeding queries: %w", err)
		}
		res.Queries = n
	}

	l.logger.Info("seed loaded",
		zap.Int("users_created", res.UsersCreated),
		zap.Int("users_existing", res.UsersExisting),
		zap.Int("queries", res.Queries))
	return res, nil
}

// CleanupGroupsForUser deletes every group owned by the account with email
// and returns how many were removed. Test runs call it to start from a
// clean slate.
func CleanupGroupsForUser(ctx context.Context, store storage.Storage, email string) (int, error) {
	user, err := store.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", email, err)
	}
	return store.DeleteAllGroupsForUser(ctx, user.ID)
}
