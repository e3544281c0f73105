package service

import (
	"cmp"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bcnelson/seo-insights/internal/aggregate"
	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage"
	"github.com/bcnelson/seo-insights/internal/telemetry"
	"github.com/bcnelson/seo-insights/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GroupService manages user-owned query groups.
//
// Every operation is scoped to a user: groups owned by someone else are
// reported as domain.ErrNotFound so their existence is not revealed.
// Returned GroupDto values are always computed from the membership as it is
// at the end of the operation.
type GroupService struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

// NewGroupService creates a new GroupService.
func NewGroupService(store storage.Storage, logger *zap.Logger) *GroupService {
	return &GroupService{
		store:  store,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// Create creates a group holding queryIDs.
func (s *GroupService) Create(ctx context.Context, userID string, req domain.CreateGroupRequest) (*domain.GroupDto, error) {
	var dto *domain.GroupDto
	err := storage.WithTx(ctx, s.store, func(tx storage.Transaction) error {
		var err error
		dto, err = s.create(ctx, tx, userID, req.Name, req.QueryIDs, req.AIGenerated)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created",
		zap.String("group_id", dto.ID),
		zap.String("user_id", userID),
		zap.Int("query_count", dto.QueryCount))
	return dto, nil
}

func (s *GroupService) create(ctx context.Context, tx storage.Storage, userID, name string, queryIDs []string, aiGenerated bool) (*domain.GroupDto, error) {
	name, err := validation.NormalizeGroupName(name)
	if err != nil {
		return nil, err
	}
	ids := validation.DedupeIDs(queryIDs)
	if len(ids) == 0 {
		var errs validation.ValidationErrors
		errs.Add("queryIds", "", "select at least one query")
		return nil, errs
	}
	if err := requireQueries(ctx, tx, ids); err != nil {
		return nil, err
	}

	now := s.now()
	group := &domain.Group{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		AIGenerated: aiGenerated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}
	added, err := tx.AddGroupItems(ctx, group.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("adding group items: %w", err)
	}

	telemetry.GroupMutations.WithLabelValues("create").Inc()
	telemetry.GroupItemsAdded.Add(float64(added))
	return groupDto(ctx, tx, group.ID)
}

// List returns the user's groups ordered by sortKey (name, created_at or
// query_count). Ties are broken by name, then id.
func (s *GroupService) List(ctx context.Context, userID, sortKey string, desc bool) ([]*domain.GroupDto, error) {
	if sortKey == "" {
		sortKey = domain.GroupSortName
	}
	var compare func(a, b *domain.GroupDto) int
	switch sortKey {
	case domain.GroupSortName:
		compare = func(a, b *domain.GroupDto) int { return 0 }
	case domain.GroupSortCreatedAt:
		compare = func(a, b *domain.GroupDto) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case domain.GroupSortQueryCount:
		compare = func(a, b *domain.GroupDto) int { return cmp.Compare(a.QueryCount, b.QueryCount) }
	default:
		var errs validation.ValidationErrors
		errs.Add("sort", sortKey, "must be one of: name created_at query_count")
		return nil, errs
	}

	groups, err := s.store.ListGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	dtos := make([]*domain.GroupDto, 0, len(groups))
	for _, g := range groups {
		members, err := s.store.ListGroupQueries(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("listing members of %s: %w", g.ID, err)
		}
		dtos = append(dtos, aggregate.Dto(g, members))
	}

	sort.SliceStable(dtos, func(i, j int) bool {
		a, b := dtos[i], dtos[j]
		if c := compare(a, b); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			if desc && sortKey == domain.GroupSortName {
				return c > 0
			}
			return c < 0
		}
		return a.ID < b.ID
	})
	return dtos, nil
}

// Get returns one of the user's groups.
func (s *GroupService) Get(ctx context.Context, userID, id string) (*domain.GroupDto, error) {
	if _, err := ownedGroup(ctx, s.store, userID, id); err != nil {
		return nil, err
	}
	return groupDto(ctx, s.store, id)
}

// Items returns the member queries of one of the user's groups.
func (s *GroupService) Items(ctx context.Context, userID, id string) ([]*domain.Query, error) {
	if _, err := ownedGroup(ctx, s.store, userID, id); err != nil {
		return nil, err
	}
	return s.store.ListGroupQueries(ctx, id)
}

// Rename changes a group's name. ifMatch, when set, must equal the group's
// current ETag. Renaming to the current name changes nothing.
func (s *GroupService) Rename(ctx context.Context, userID, id, name, ifMatch string) (*domain.GroupDto, error) {
	name, err := validation.NormalizeGroupName(name)
	if err != nil {
		return nil, err
	}

	var dto *domain.GroupDto
	err = storage.WithTx(ctx, s.store, func(tx storage.Transaction) error {
		group, err := ownedGroup(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !group.MatchesETag(ifMatch) {
			return &domain.PreconditionError{CurrentETag: group.ETag()}
		}
		if group.Name != name {
			group.Name = name
			group.UpdatedAt = s.now()
			if err := tx.UpdateGroup(ctx, group); err != nil {
				return fmt.Errorf("renaming group: %w", err)
			}
			telemetry.GroupMutations.WithLabelValues("rename").Inc()
		}
		dto, err = groupDto(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// Delete removes one of the user's groups and its memberships. The queries
// themselves are untouched.
func (s *GroupService) Delete(ctx context.Context, userID, id, ifMatch string) error {
	err := storage.WithTx(ctx, s.store, func(tx storage.Transaction) error {
		group, err := ownedGroup(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !group.MatchesETag(ifMatch) {
			return &domain.PreconditionError{CurrentETag: group.ETag()}
		}
		return tx.DeleteGroup(ctx, id)
	})
	if err != nil {
		return err
	}
	telemetry.GroupMutations.WithLabelValues("delete").Inc()
	s.logger.Info("group deleted", zap.String("group_id", id), zap.String("user_id", userID))
	return nil
}

// AddItems adds queries to a group. Queries that are already members are
// skipped and reported in SkippedCount.
func (s *GroupService) AddItems(ctx context.Context, userID, id string, queryIDs []string) (*domain.AddGroupItemsResponse, error) {
	ids := validation.DedupeIDs(queryIDs)
	if len(ids) == 0 {
		var errs validation.ValidationErrors
		errs.Add("queryIds", "", "select at least one query")
		return nil, errs
	}

	resp := &domain.AddGroupItemsResponse{}
	err := storage.WithTx(ctx, s.store, func(tx storage.Transaction) error {
		if _, err := ownedGroup(ctx, tx, userID, id); err != nil {
			return err
		}
		if err := requireQueries(ctx, tx, ids); err != nil {
			return err
		}
		added, err := tx.AddGroupItems(ctx, id, ids)
		if err != nil {
			return fmt.Errorf("adding group items: %w", err)
		}
		resp.AddedCount = added
		resp.SkippedCount = len(ids) - added
		resp.Group, err = groupDto(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	telemetry.GroupMutations.WithLabelValues("add_items").Inc()
	telemetry.GroupItemsAdded.Add(float64(resp.AddedCount))
	return resp, nil
}

// RemoveItem removes one query from a group. Removing a query that is not a
// member is domain.ErrNotFound.
func (s *GroupService) RemoveItem(ctx context.Context, userID, id, queryID string) (*domain.GroupDto, error) {
	var dto *domain.GroupDto
	err := storage.WithTx(ctx, s.store, func(tx storage.Transaction) error {
		if _, err := ownedGroup(ctx, tx, userID, id); err != nil {
			return err
		}
		if err := tx.RemoveGroupItem(ctx, id, queryID); err != nil {
			return fmt.Errorf("query %s in group %s: %w", queryID, id, err)
		}
		var err error
		dto, err = groupDto(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	telemetry.GroupMutations.WithLabelValues("remove_item").Inc()
	return dto, nil
}

// ownedGroup loads a group and hides it unless userID owns it.
func ownedGroup(ctx context.Context, s storage.Storage, userID, id string) (*domain.Group, error) {
	group, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return group, nil
}

func groupDto(ctx context.Context, s storage.Storage, id string) (*domain.GroupDto, error) {
	group, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.ListGroupQueries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing group members: %w", err)
	}
	return aggregate.Dto(group, members), nil
}

// requireQueries reports every id with no matching query as a validation
// error.
func requireQueries(ctx context.Context, s storage.Storage, ids []string) error {
	found, err := s.GetQueries(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading queries: %w", err)
	}
	if len(found) == len(ids) {
		return nil
	}
	known := make(map[string]struct{}, len(found))
	for _, q := range found {
		known[q.ID] = struct{}{}
	}
	var errs validation.ValidationErrors
	for i, id := range ids {
		if _, ok := known[id]; !ok {
			errs.Add(fmt.Sprintf("queryIds[%d]", i), id, "unknown query")
		}
	}
	return errs
}
