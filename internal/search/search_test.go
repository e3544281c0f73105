package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/bcnelson/seo-insights/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSearcher struct {
	healthy bool
	err     error
	results []*domain.Query
	calls   int
}

func (f *fakeSearcher) Search(ctx context.Context, filter domain.QueryFilter) ([]*domain.Query, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.results, len(f.results), nil
}

func (f *fakeSearcher) Healthy() bool { return f.healthy }

func TestFallback(t *testing.T) {
	primaryResult := []*domain.Query{{ID: "p"}}
	secondaryResult := []*domain.Query{{ID: "s"}}

	tests := []struct {
		name    string
		primary *fakeSearcher
		want    string
	}{
		{"healthy primary", &fakeSearcher{healthy: true, results: primaryResult}, "p"},
		{"unhealthy primary", &fakeSearcher{healthy: false, results: primaryResult}, "s"},
		{"failing primary", &fakeSearcher{healthy: true, err: errors.New("down")}, "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secondary := &fakeSearcher{healthy: true, results: secondaryResult}
			f := NewFallback(tt.primary, secondary, zap.NewNop())

			got, total, err := f.Search(context.Background(), domain.QueryFilter{})
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			assert.Equal(t, tt.want, got[0].ID)
		})
	}
}

func TestFallback_NilPrimary(t *testing.T) {
	secondary := &fakeSearcher{healthy: true, results: []*domain.Query{{ID: "s"}}}
	f := NewFallback(nil, secondary, zap.NewNop())

	got, _, err := f.Search(context.Background(), domain.QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, "s", got[0].ID)
	assert.True(t, f.Healthy())
}

func TestStoreSearcher(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.UpsertQueries(ctx, []*domain.Query{
		{ID: "q1", QueryText: "running shoes", Impressions: 10, AvgPosition: 1},
		{ID: "q2", QueryText: "hiking boots", Impressions: 20, AvgPosition: 1},
	})
	require.NoError(t, err)

	s := NewStoreSearcher(store)
	assert.True(t, s.Healthy())
	assert.NoError(t, s.IndexQueries(ctx, nil))

	got, total, err := s.Search(ctx, domain.QueryFilter{Search: "boots"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "q2", got[0].ID)
}

func TestMeili_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewMeili(url, "", "queries", time.Hour, zap.NewNop())
	defer m.Close()

	assert.False(t, m.Healthy())
	_, _, err := m.Search(context.Background(), domain.QueryFilter{})
	assert.Error(t, err)
	assert.Error(t, m.IndexQueries(context.Background(), []*domain.Query{{ID: "q1"}}))
	assert.NoError(t, m.IndexQueries(context.Background(), nil))
}

func TestMeili_Search(t *testing.T) {
	var searchBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			w.Write([]byte(`{"status":"available"}`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			json.NewDecoder(r.Body).Decode(&searchBody)
			w.Write([]byte(`{"hits":[{"id":"q1","queryText":"running shoes","impressions":5000,"clicks":50,"ctr":0.01,"avgPosition":8.2,"isOpportunity":true}],"estimatedTotalHits":7,"offset":0,"limit":20,"processingTimeMs":1,"query":"running"}`))
		default:
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"taskUid":1,"indexUid":"queries","status":"enqueued","type":"settingsUpdate","enqueuedAt":"2024-01-01T00:00:00Z"}`))
		}
	}))
	defer srv.Close()

	m := NewMeili(srv.URL, "key", "queries", time.Hour, zap.NewNop())
	defer m.Close()
	require.True(t, m.Healthy())

	got, total, err := m.Search(context.Background(), domain.QueryFilter{
		Search:          "running",
		OpportunityOnly: true,
		Sort:            domain.QuerySortCTR,
		Limit:           20,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, got, 1)
	assert.Equal(t, "running shoes", got[0].QueryText)
	assert.True(t, got[0].IsOpportunity)

	assert.Equal(t, "running", searchBody["q"])
	assert.Equal(t, "isOpportunity = true", searchBody["filter"])
	assert.Equal(t, []any{"ctr:asc", "id:asc"}, searchBody["sort"])
}

func TestMeili_RequestsFollowContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			w.Write([]byte(`{"status":"available"}`))
		case strings.HasSuffix(r.URL.Path, "/search"), strings.HasSuffix(r.URL.Path, "/documents"):
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"taskUid":1,"indexUid":"queries","status":"enqueued","type":"settingsUpdate","enqueuedAt":"2024-01-01T00:00:00Z"}`))
		}
	}))
	defer srv.Close()

	m := NewMeili(srv.URL, "key", "queries", time.Hour, zap.NewNop())
	defer m.Close()
	require.True(t, m.Healthy())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _, err := m.Search(ctx, domain.QueryFilter{Search: "running"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, m.Healthy(), "a cancelled request says nothing about server health")

	start = time.Now()
	err = m.IndexQueries(ctx, []*domain.Query{{ID: "q1", QueryText: "running shoes"}})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
