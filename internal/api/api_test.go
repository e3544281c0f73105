package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/seo-insights/internal/api"
	"github.com/bcnelson/seo-insights/internal/api/middleware"
	"github.com/bcnelson/seo-insights/internal/auth"
	"github.com/bcnelson/seo-insights/internal/clusters"
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

const (
	testEmail    = "qa@example.com"
	testPassword = "qa-password-1"
)

// testServer creates a test server with in-memory storage
type testServer struct {
	handler      http.Handler
	store        *memory.Store
	outbox       *mail.FileOutbox
	auth         *service.AuthService
	bootstrapKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	logger := zap.NewNop()
	bootstrapKey := "test-bootstrap-key"

	sessions, err := auth.NewSessionManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour, false)
	require.NoError(t, err)

	outbox := mail.NewFileOutbox(filepath.Join(t.TempDir(), "outbox.jsonl"))
	authService := service.NewAuthService(store, auth.NewSQLTokenStore(store), outbox, service.AuthOptions{
		BaseURL:     "http://localhost:8080",
		ResetTTL:    time.Hour,
		AllowSignup: true,
	}, logger)
	groups := service.NewGroupService(store, logger)
	index := service.NewIndexService(store, search.NewStoreSearcher(store), time.Second, false, logger)

	handler := api.NewRouter(api.Deps{
		Auth:          authService,
		Groups:        groups,
		Queries:       service.NewQueryService(store, search.NewStoreSearcher(store), index, logger),
		Index:         index,
		Clusters:      service.NewClusterService(store, groups, clusters.NewLexical(0), 0, logger),
		Authenticator: middleware.NewAuthenticator(store, sessions, bootstrapKey, testEmail, logger),
		Sessions:      sessions,
		LoginLimiter:  middleware.NewRateLimiter(100),
		Logger:        logger,
	})

	ctx := context.Background()
	_, err = authService.CreateUser(ctx, testEmail, testPassword)
	require.NoError(t, err)
	_, err = store.UpsertQueries(ctx, []*domain.Query{
		storagetest.Query("q1", "running shoes", 5000, 50, 8.2),
		storagetest.Query("q2", "Trail running shoes", 1200, 120, 3.1),
		storagetest.Query("q3", "buy sneakers online", 300, 3, 14.0),
		storagetest.Query("q4", "sneaker cleaning", 0, 0, 22.5),
	})
	require.NoError(t, err)

	return &testServer{
		handler:      handler,
		store:        store,
		outbox:       outbox,
		auth:         authService,
		bootstrapKey: bootstrapKey,
	}
}

func (ts *testServer) request(method, path string, body any, apiKey string, headers ...string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// newUserKey creates a second account with its own API key.
func (ts *testServer) newUserKey(t *testing.T, email string) string {
	t.Helper()
	user, err := ts.auth.CreateUser(context.Background(), email, "other-password")
	require.NoError(t, err)
	key, err := ts.auth.CreateAPIKey(context.Background(), user.ID, "test")
	require.NoError(t, err)
	return key.Key
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) domain.StandardError {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	body := decode[domain.StandardErrorResponse](t, rr)
	assert.Equal(t, code, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
	return body.Error
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.request(http.MethodGet, "/health", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "seo_insights_http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	assertError(t, ts.request(http.MethodGet, "/api/groups", nil, ""), http.StatusUnauthorized, domain.ErrCodeUnauthorized)
	assertError(t, ts.request(http.MethodGet, "/api/groups", nil, "invalid-key"), http.StatusUnauthorized, domain.ErrCodeUnauthorized)
	assertError(t, ts.request(http.MethodGet, "/api/groups", nil, "", "Authorization", "Basic abc"), http.StatusUnauthorized, domain.ErrCodeUnauthorized)
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := newTestServer(t)
	assertError(t, ts.request(http.MethodGet, "/api/nothing-here", nil, ts.bootstrapKey), http.StatusNotFound, domain.ErrCodeNotFound)
}

func TestBootstrapKeyAuth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/auth/me", nil, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testEmail, decode[domain.User](t, rr).Email)
}

func TestAPIKeyLifecycle(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/keys", domain.CreateAPIKeyRequest{Name: "Test Key"}, ts.bootstrapKey)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[domain.CreateAPIKeyResponse](t, rr)
	assert.Equal(t, "Test Key", created.Name)
	assert.NotEmpty(t, created.Key)

	// The bootstrap key is disabled once a real key exists.
	assertError(t, ts.request(http.MethodGet, "/api/keys", nil, ts.bootstrapKey), http.StatusUnauthorized, domain.ErrCodeUnauthorized)

	rr = ts.request(http.MethodGet, "/api/keys", nil, created.Key)
	require.Equal(t, http.StatusOK, rr.Code)
	keys := decode[[]map[string]any](t, rr)
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "keyHash")

	assertError(t, ts.request(http.MethodPost, "/api/keys", map[string]string{}, created.Key), http.StatusBadRequest, domain.ErrCodeValidation)

	rr = ts.request(http.MethodDelete, "/api/keys/"+created.ID, nil, created.Key)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/auth/register", domain.RegisterRequest{Email: "new@example.com", Password: "new-password"}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	assertError(t, ts.request(http.MethodPost, "/api/auth/register", domain.RegisterRequest{Email: "new@example.com", Password: "new-password"}, ""),
		http.StatusConflict, domain.ErrCodeConflict)
	verr := assertError(t, ts.request(http.MethodPost, "/api/auth/register", domain.RegisterRequest{Email: "bad", Password: "x"}, ""),
		http.StatusBadRequest, domain.ErrCodeValidation)
	assert.Len(t, verr.Details["errors"], 2)

	assertError(t, ts.request(http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: "new@example.com", Password: "wrong-password"}, ""),
		http.StatusUnauthorized, domain.ErrCodeUnauthorized)

	rr = ts.request(http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: "new@example.com", Password: "new-password"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	me := httptest.NewRecorder()
	ts.handler.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "new@example.com", decode[domain.User](t, me).Email)

	rr = ts.request(http.MethodPost, "/api/auth/logout", nil, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			assert.Less(t, c.MaxAge, 0)
		}
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/auth/forgot-password", domain.ForgotPasswordRequest{Email: "nobody@example.com"}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/auth/forgot-password", domain.ForgotPasswordRequest{Email: testEmail}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	msg, err := ts.outbox.Latest(testEmail)
	require.NoError(t, err)
	link, err := url.Parse(msg.ResetURL)
	require.NoError(t, err)
	token := link.Query().Get("token")

	// Invalid tokens answer 400 with the unauthorized code.
	assertError(t, ts.request(http.MethodPost, "/api/auth/reset-password", domain.ResetPasswordRequest{Token: "bogus", Password: "brand-new-pass"}, ""),
		http.StatusBadRequest, domain.ErrCodeUnauthorized)

	rr = ts.request(http.MethodPost, "/api/auth/reset-password", domain.ResetPasswordRequest{Token: token, Password: "brand-new-pass"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: testEmail, Password: "brand-new-pass"}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 101; i++ {
		last = ts.request(http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: "nobody@example.com", Password: "wrong-password"}, "")
	}
	assertError(t, last, http.StatusTooManyRequests, domain.ErrCodeRateLimited)
}

func TestLoginRateLimit_IgnoresForwardedFor(t *testing.T) {
	ts := newTestServer(t)

	var last *httptest.ResponseRecorder
	for i := 0; i < 101; i++ {
		ip := fmt.Sprintf("203.0.113.%d", i%250)
		last = ts.request(http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: "nobody@example.com", Password: "wrong-password"}, "",
			"X-Forwarded-For", ip, "X-Real-IP", ip)
	}
	assertError(t, last, http.StatusTooManyRequests, domain.ErrCodeRateLimited)
}

func TestQueriesList(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/queries", nil, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[domain.QueryPage](t, rr)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Data, 4)
	assert.Equal(t, "q1", page.Data[0].ID, "default order is impressions descending")

	rr = ts.request(http.MethodGet, "/api/queries?search=running&sort=query_text&order=asc&limit=1&offset=1", nil, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code)
	page = decode[domain.QueryPage](t, rr)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "q2", page.Data[0].ID)

	rr = ts.request(http.MethodGet, "/api/queries?opportunity=true", nil, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code)
	page = decode[domain.QueryPage](t, rr)
	require.Len(t, page.Data, 1)
	assert.True(t, page.Data[0].IsOpportunity)

	assertError(t, ts.request(http.MethodGet, "/api/queries?limit=abc", nil, ts.bootstrapKey), http.StatusBadRequest, domain.ErrCodeValidation)
	assertError(t, ts.request(http.MethodGet, "/api/queries?order=sideways", nil, ts.bootstrapKey), http.StatusBadRequest, domain.ErrCodeValidation)
}

func TestQueriesUpsert(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/queries", []map[string]any{
		{"id": "q9", "queryText": "seo audit", "impressions": 2000, "clicks": 10, "avgPosition": 7.0},
	}, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decode[domain.UpsertQueriesResponse](t, rr).Upserted)

	q, err := ts.store.GetQuery(context.Background(), "q9")
	require.NoError(t, err)
	assert.True(t, q.IsOpportunity)

	assertError(t, ts.request(http.MethodPost, "/api/queries", []map[string]any{
		{"id": "bad", "queryText": "bad", "impressions": 1, "clicks": 2, "avgPosition": 1.0},
	}, ts.bootstrapKey), http.StatusBadRequest, domain.ErrCodeValidation)

	// A null element is a validation error, not a server error.
	se := assertError(t, ts.request(http.MethodPost, "/api/queries", []any{nil}, ts.bootstrapKey), http.StatusBadRequest, domain.ErrCodeValidation)
	assert.Contains(t, se.Message, "[0]: query is required")
}

func TestGroupLifecycle(t *testing.T) {
	ts := newTestServer(t)
	key := ts.bootstrapKey

	// Create
	rr := ts.request(http.MethodPost, "/api/groups", map[string]any{
		"name":     "  Running  ",
		"queryIds": []string{"q1", "q2"},
	}, key)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[domain.GroupDto](t, rr)
	assert.Equal(t, "Running", created.Name)
	assert.Equal(t, 2, created.QueryCount)
	assert.Equal(t, int64(6200), created.Metrics.Impressions)
	assert.InDelta(t, 170.0/6200.0, created.Metrics.CTR, 1e-12)
	etag := rr.Header().Get("ETag")
	assert.NotEmpty(t, etag)

	groupPath := "/api/groups/" + created.ID

	// Get
	rr = ts.request(http.MethodGet, groupPath, nil, key)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, etag, rr.Header().Get("ETag"))

	// List
	rr = ts.request(http.MethodGet, "/api/groups?sort=query_count&order=desc", nil, key)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]domain.GroupDto](t, rr), 1)
	assertError(t, ts.request(http.MethodGet, "/api/groups?sort=colour", nil, key), http.StatusBadRequest, domain.ErrCodeValidation)

	// Duplicate name
	assertError(t, ts.request(http.MethodPost, "/api/groups", map[string]any{
		"name": "Running", "queryIds": []string{"q3"},
	}, key), http.StatusConflict, domain.ErrCodeConflict)

	// Add items: one new, one duplicate
	rr = ts.request(http.MethodPost, groupPath+"/items", map[string]any{"queryIds": []string{"q2", "q3"}}, key)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	added := decode[domain.AddGroupItemsResponse](t, rr)
	assert.Equal(t, 1, added.AddedCount)
	assert.Equal(t, 1, added.SkippedCount)
	assert.Equal(t, 3, added.Group.QueryCount)
	assert.Equal(t, int64(6500), added.Group.Metrics.Impressions)

	// The old ETag no longer matches.
	perr := assertError(t, ts.request(http.MethodPatch, groupPath, map[string]string{"name": "Shoes"}, key, "If-Match", etag),
		http.StatusPreconditionFailed, domain.ErrCodePreconditionFailed)
	current, _ := perr.Details["currentETag"].(string)
	require.NotEmpty(t, current)
	assert.NotEqual(t, etag, current)

	rr = ts.request(http.MethodPatch, groupPath, map[string]string{"name": "Shoes"}, key, "If-Match", current)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Shoes", decode[domain.GroupDto](t, rr).Name)

	assertError(t, ts.request(http.MethodPatch, groupPath, map[string]string{"name": "   "}, key), http.StatusBadRequest, domain.ErrCodeValidation)

	// Items
	rr = ts.request(http.MethodGet, groupPath+"/items", nil, key)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decode[[]domain.Query](t, rr)
	require.Len(t, items, 3)
	assert.Equal(t, "buy sneakers online", items[0].QueryText, "ordered by query text")

	// Remove
	rr = ts.request(http.MethodDelete, groupPath+"/items/q3", nil, key)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decode[domain.GroupDto](t, rr).QueryCount)
	assertError(t, ts.request(http.MethodDelete, groupPath+"/items/q3", nil, key), http.StatusNotFound, domain.ErrCodeNotFound)

	// Delete
	rr = ts.request(http.MethodDelete, groupPath, nil, key)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assertError(t, ts.request(http.MethodGet, groupPath, nil, key), http.StatusNotFound, domain.ErrCodeNotFound)

	// Queries survive their group.
	_, err := ts.store.GetQuery(context.Background(), "q1")
	assert.NoError(t, err)
}

func TestGroupValidation(t *testing.T) {
	ts := newTestServer(t)

	verr := assertError(t, ts.request(http.MethodPost, "/api/groups", map[string]any{"name": "", "queryIds": []string{}}, ts.bootstrapKey),
		http.StatusBadRequest, domain.ErrCodeValidation)
	assert.NotEmpty(t, verr.Details["errors"])

	assertError(t, ts.request(http.MethodPost, "/api/groups", map[string]any{"name": "Ghost", "queryIds": []string{"missing"}}, ts.bootstrapKey),
		http.StatusBadRequest, domain.ErrCodeValidation)

	req := httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+ts.bootstrapKey)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assertError(t, rr, http.StatusBadRequest, domain.ErrCodeValidation)

	// The length limit applies to the trimmed name.
	maxName := strings.Repeat("a", domain.MaxGroupNameLength)
	rr = ts.request(http.MethodPost, "/api/groups", map[string]any{"name": "  " + maxName + "  ", "queryIds": []string{"q1"}}, ts.bootstrapKey)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	group := decode[domain.GroupDto](t, rr)
	assert.Equal(t, maxName, group.Name)

	rr = ts.request(http.MethodPatch, "/api/groups/"+group.ID, map[string]string{"name": " " + maxName + "\t"}, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assertError(t, ts.request(http.MethodPost, "/api/groups", map[string]any{"name": maxName + "a", "queryIds": []string{"q1"}}, ts.bootstrapKey),
		http.StatusBadRequest, domain.ErrCodeValidation)
}

func TestGroupsAreScopedToOwner(t *testing.T) {
	ts := newTestServer(t)
	otherKey := ts.newUserKey(t, "other@example.com")

	rr := ts.request(http.MethodPost, "/api/groups", map[string]any{"name": "Private", "queryIds": []string{"q1"}}, otherKey)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	group := decode[domain.GroupDto](t, rr)

	// The bootstrap key stops working once the other user has a key, so
	// make one for the main user too.
	owner, err := ts.store.GetUserByEmail(context.Background(), testEmail)
	require.NoError(t, err)
	mine, err := ts.auth.CreateAPIKey(context.Background(), owner.ID, "mine")
	require.NoError(t, err)

	assertError(t, ts.request(http.MethodGet, "/api/groups/"+group.ID, nil, mine.Key), http.StatusNotFound, domain.ErrCodeNotFound)
	assertError(t, ts.request(http.MethodDelete, "/api/groups/"+group.ID, nil, mine.Key), http.StatusNotFound, domain.ErrCodeNotFound)

	rr = ts.request(http.MethodGet, "/api/groups", nil, mine.Key)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]domain.GroupDto](t, rr))
}

func TestClusters(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/clusters/suggest", domain.SuggestClustersRequest{}, ts.bootstrapKey)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	suggestions := decode[[]domain.Cluster](t, rr)
	require.Len(t, suggestions, 1)
	assert.Equal(t, []string{"q1", "q2"}, suggestions[0].QueryIDs)

	rr = ts.request(http.MethodPost, "/api/clusters/accept", domain.AcceptClustersRequest{Clusters: []domain.AcceptedCluster{
		{Name: suggestions[0].Name, QueryIDs: suggestions[0].QueryIDs},
	}}, ts.bootstrapKey)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	groups := decode[[]domain.GroupDto](t, rr)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].AIGenerated)
	assert.Equal(t, 2, groups[0].QueryCount)

	assertError(t, ts.request(http.MethodPost, "/api/clusters/accept", domain.AcceptClustersRequest{}, ts.bootstrapKey),
		http.StatusBadRequest, domain.ErrCodeValidation)
}
