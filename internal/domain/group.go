package domain

import (
	"fmt"
	"time"
)

// MaxGroupNameLength bounds group names after trimming.
const MaxGroupNameLength = 255

// Group is a user-owned, named set of queries.
// The same query may belong to any number of groups.
type Group struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	AIGenerated bool      `json:"aiGenerated" db:"ai_generated"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// ETag identifies this version of the group.
// Format: "group-<id>-<updated_at_unix_nano>"
func (g *Group) ETag() string {
	return fmt.Sprintf(`"group-%s-%d"`, g.ID, g.UpdatedAt.UnixNano())
}

// MatchesETag reports whether an If-Match value allows changing g.
// An empty value or "*" always matches.
func (g *Group) MatchesETag(ifMatch string) bool {
	return ifMatch == "" || ifMatch == "*" || ifMatch == g.ETag()
}

// GroupMetrics are aggregated over a group's current members.
type GroupMetrics struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	AvgPosition float64 `json:"avgPosition"`
}

// GroupDto is a group as returned by the API, with derived fields.
type GroupDto struct {
	Group
	QueryCount int          `json:"queryCount"`
	Metrics    GroupMetrics `json:"metrics"`
}

// Group list sort keys.
const (
	GroupSortName       = "name"
	GroupSortCreatedAt  = "created_at"
	GroupSortQueryCount = "query_count"
)

// CreateGroupRequest is the request body for creating a group.
type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required"`
	QueryIDs    []string `json:"queryIds" validate:"required,min=1,max=500,dive,required"`
	AIGenerated bool     `json:"aiGenerated"`
}

// RenameGroupRequest is the request body for renaming a group.
type RenameGroupRequest struct {
	Name string `json:"name" validate:"required"`
}

// AddGroupItemsRequest adds queries to a group.
type AddGroupItemsRequest struct {
	QueryIDs []string `json:"queryIds" validate:"required,min=1,max=500,dive,required"`
}

// AddGroupItemsResponse reports the outcome of adding queries to a group.
// Queries that were already members are skipped, not counted as added.
type AddGroupItemsResponse struct {
	AddedCount   int       `json:"addedCount"`
	SkippedCount int       `json:"skippedCount"`
	Group        *GroupDto `json:"group"`
}
