package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
// Values are copied on the way in and out so callers never share state
// with the store.
type Store struct {
	mu sync.RWMutex

	users   map[string]*domain.User
	apiKeys map[string]*domain.APIKey
	resets  map[string]*domain.PasswordReset // key: token hash
	queries map[string]*domain.Query
	groups  map[string]*domain.Group
	items   map[string]map[string]struct{} // group id -> query ids
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:   make(map[string]*domain.User),
		apiKeys: make(map[string]*domain.APIKey),
		resets:  make(map[string]*domain.PasswordReset),
		queries: make(map[string]*domain.Query),
		groups:  make(map[string]*domain.Group),
		items:   make(map[string]map[string]struct{}),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{Store: s}, nil
}

// Tx is a no-op transaction for the in-memory store. Writes are applied
// immediately and Rollback does not undo them.
type Tx struct {
	*Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// ============================================
// Users
// ============================================

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrAlreadyExists
		}
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			u := *user
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, exists := s.users[id]
	if !exists {
		return domain.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[key.ID]; exists {
		return domain.ErrAlreadyExists
	}
	k := *key
	s.apiKeys[key.ID] = &k
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			k := *key
			return &k, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0)
	for _, key := range s.apiKeys {
		if key.UserID == userID {
			k := *key
			keys = append(keys, &k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.apiKeys[id]
	if !exists || key.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.apiKeys[id]
	if !exists {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Password resets
// ============================================

func (s *Store) CreatePasswordReset(ctx context.Context, reset *domain.PasswordReset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resets[reset.TokenHash]; exists {
		return domain.ErrAlreadyExists
	}
	r := *reset
	s.resets[reset.TokenHash] = &r
	return nil
}

func (s *Store) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset, exists := s.resets[tokenHash]
	if !exists || reset.UsedAt != nil || !now.Before(reset.ExpiresAt) {
		return "", domain.ErrInvalidToken
	}
	used := now
	reset.UsedAt = &used
	return reset.UserID, nil
}

// ============================================
// Queries
// ============================================

func (s *Store) UpsertQueries(ctx context.Context, queries []*domain.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range queries {
		c := *q
		if existing, ok := s.queries[q.ID]; ok {
			c.CreatedAt = existing.CreatedAt
		}
		s.queries[q.ID] = &c
	}
	return len(queries), nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (*domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, exists := s.queries[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	c := *q
	return &c, nil
}

func (s *Store) GetQueries(ctx context.Context, ids []string) ([]*domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Query, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if q, ok := s.queries[id]; ok {
			c := *q
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) ListQueries(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*domain.Query, 0)
	for _, q := range s.queries {
		if filter.OpportunityOnly && !q.IsOpportunity {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(q.QueryText), search) {
			continue
		}
		c := *q
		matched = append(matched, &c)
	}
	storage.SortQueries(matched, filter.Sort, filter.Descending)

	total := len(matched)
	return storage.Page(matched, filter.Limit, filter.Offset), total, nil
}

func (s *Store) ListAllQueries(ctx context.Context) ([]*domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Query, 0, len(s.queries))
	for _, q := range s.queries {
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ============================================
// Groups
// ============================================

func (s *Store) nameTaken(userID, name, exceptID string) bool {
	for _, g := range s.groups {
		if g.UserID == userID && g.Name == name && g.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateGroup(ctx context.Context, group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[group.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if s.nameTaken(group.UserID, group.Name, "") {
		return domain.ErrAlreadyExists
	}
	g := *group
	s.groups[group.ID] = &g
	s.items[group.ID] = make(map[string]struct{})
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, exists := s.groups[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	g := *group
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]*domain.Group, 0)
	for _, group := range s.groups {
		if group.UserID == userID {
			g := *group
			groups = append(groups, &g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (s *Store) UpdateGroup(ctx context.Context, group *domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.groups[group.ID]
	if !exists {
		return domain.ErrNotFound
	}
	if s.nameTaken(existing.UserID, group.Name, group.ID) {
		return domain.ErrAlreadyExists
	}
	existing.Name = group.Name
	existing.AIGenerated = group.AIGenerated
	existing.UpdatedAt = group.UpdatedAt
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.groups, id)
	delete(s.items, id)
	return nil
}

func (s *Store) DeleteAllGroupsForUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, g := range s.groups {
		if g.UserID == userID {
			delete(s.groups, id)
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

// ============================================
// Group items
// ============================================

func (s *Store) AddGroupItems(ctx context.Context, groupID string, queryIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, exists := s.groups[groupID]
	if !exists {
		return 0, domain.ErrNotFound
	}
	for _, id := range queryIDs {
		if _, ok := s.queries[id]; !ok {
			return 0, domain.ErrNotFound
		}
	}
	members := s.items[groupID]
	added := 0
	for _, id := range queryIDs {
		if _, ok := members[id]; ok {
			continue
		}
		members[id] = struct{}{}
		added++
	}
	if added > 0 {
		group.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	return added, nil
}

func (s *Store) RemoveGroupItem(ctx context.Context, groupID, queryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	group, exists := s.groups[groupID]
	if !exists {
		return domain.ErrNotFound
	}
	members := s.items[groupID]
	if _, ok := members[queryID]; !ok {
		return domain.ErrNotFound
	}
	delete(members, queryID)
	group.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return nil
}

func (s *Store) ListGroupQueries(ctx context.Context, groupID string) ([]*domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.groups[groupID]; !exists {
		return nil, domain.ErrNotFound
	}
	out := make([]*domain.Query, 0, len(s.items[groupID]))
	for id := range s.items[groupID] {
		if q, ok := s.queries[id]; ok {
			c := *q
			out = append(out, &c)
		}
	}
	storage.SortQueries(out, domain.QuerySortText, false)
	return out, nil
}

func (s *Store) CountGroupItems(ctx context.Context, groupID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.groups[groupID]; !exists {
		return 0, domain.ErrNotFound
	}
	return len(s.items[groupID]), nil
}

var _ storage.Storage = (*Store)(nil)
