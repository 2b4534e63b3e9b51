package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomas-mindruptive/pure-svelte-sub003/catalog"
	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	db     *daos.Database
	router *gin.Engine
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db") + "?_foreign_keys=1&_txlock=immediate&_busy_timeout=5000"
	db, err := daos.Open(context.Background(), daos.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, catalog.Migrate(db.Client.DB, db.Dialect))

	cfg, err := catalog.NewQueryConfig(db.Dialect, query.Limits{MaxRows: 100, DefaultLimit: 50})
	require.NoError(t, err)

	db.Client.MustExec(`INSERT INTO wholesalers (wholesaler_id, name, region, status) VALUES
		(1, 'Alpha Minerals', 'EU', 'active'),
		(2, 'Beta Stones', 'US', 'inactive'),
		(3, 'Gamma Crystals', 'EU', 'active')`)
	db.Client.MustExec(`INSERT INTO product_categories (category_id, name) VALUES (1, 'Rough'), (2, 'Polished')`)
	db.Client.MustExec(`INSERT INTO wholesaler_categories (wholesaler_id, category_id) VALUES (1, 1), (1, 2)`)
	db.Client.MustExec(`INSERT INTO wholesaler_item_offerings (offering_id, wholesaler_id, category_id, title, price) VALUES
		(10, 1, 1, 'Rose quartz', 12.5),
		(11, 1, 2, 'Amethyst', 30)`)
	db.Client.MustExec(`INSERT INTO wholesaler_offering_links (offering_id, url) VALUES (10, 'https://example.com/rose')`)

	return &testServer{db: db, router: New(db, cfg, nil, opts).Router()}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// =============================================================================
// Query routes
// =============================================================================

func TestQuery(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodPost, "/query/wholesaler",
		`{"select": ["name", "status"], "where": {"key": "status", "op": "=", "val": "active"}, "limit": 25}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, []any{
		map[string]any{"name": "Alpha Minerals", "status": "active"},
		map[string]any{"name": "Gamma Crystals", "status": "active"},
	}, body["data"])
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, float64(1), meta["parameterCount"])
	assert.Equal(t, true, meta["hasWhere"])
	assert.NotContains(t, body, "total")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestQuery_EmptyBody(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodPost, "/query/product_category", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["data"], 2)
}

func TestQuery_Count(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodPost, "/query/wholesaler?count=true", `{"select": ["name"], "limit": 1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, float64(3), body["total"])
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
}

func TestQuery_Named(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodPost, "/query/offering/named/offerings_with_details",
		`{"select": ["title", "w.name"], "where": {"key": "price", "op": ">", "val": 20}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{map[string]any{"title": "Amethyst", "w_name": "Alpha Minerals"}}, decode(t, w)["data"])
}

func TestQuery_Compile(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodPost, "/query/wholesaler/compile",
		`{"select": ["name", "status"], "from": {"table": "users"}, "where": {"key": "status", "op": "=", "val": "active"}, "limit": 25}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "SELECT w.name, w.status FROM wholesalers w WHERE w.status = ? ORDER BY w.name ASC LIMIT 25", body["sql"])
	assert.Equal(t, []any{map[string]any{"name": "p1", "value": "active"}}, body["parameters"])
	assert.Equal(t, true, body["metadata"].(map[string]any)["tableFixed"])
}

func TestQuery_Errors(t *testing.T) {
	s := newTestServer(t, Options{MaxRequestBody: 256})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown column", "/query/wholesaler", `{"select": ["password"]}`, http.StatusBadRequest, tools.CodeColumnNotAllowed},
		{"reserved label", "/query/wholesaler", `{"select": ["name AS order"]}`, http.StatusBadRequest, tools.CodeColumnNotAllowed},
		{"unknown entity", "/query/users", `{}`, http.StatusNotFound, tools.CodeTableNotAllowed},
		{"named query of another entity", "/query/wholesaler/named/offerings_with_details", `{}`, http.StatusNotFound, tools.CodeTableNotAllowed},
		{"empty in list", "/query/wholesaler", `{"where": {"key": "region", "op": "IN", "val": []}}`, http.StatusBadRequest, tools.CodeEmptyInList},
		{"ad hoc join", "/query/wholesaler", `{"joins": [{"type": "LEFT", "table": "orders", "alias": "o", "on": [{"left": "w.wholesaler_id", "op": "=", "right": "o.wholesaler_id"}]}]}`, http.StatusBadRequest, tools.CodeJoinNotAllowed},
		{"limit over max", "/query/wholesaler", `{"limit": 101}`, http.StatusBadRequest, tools.CodeInvalidPagination},
		{"unknown member", "/query/wholesaler", `{"table": "users"}`, http.StatusBadRequest, tools.CodeInvalidJSON},
		{"body too large", "/query/wholesaler", `{"select": ["name"], "where": {"key": "name", "op": "LIKE", "val": "` + strings.Repeat("a", 300) + `"}}`, http.StatusRequestEntityTooLarge, tools.CodeInvalidJSON},
		{"raw disabled", "/query/wholesaler/raw", `{"where": "status = 'active'"}`, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode(t, w)["code"])
		})
	}
}

func TestQuery_DeepNesting(t *testing.T) {
	s := newTestServer(t, Options{})

	body := `{"where": ` + strings.Repeat(`{"op": "AND", "conditions": [`, 1000) +
		`{"key": "name", "op": "=", "val": "x"}` + strings.Repeat(`]}`, 1000) + `}`
	w := s.do(http.MethodPost, "/query/wholesaler", body)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, tools.CodeMalformedCondition, decode(t, w)["code"])
}

func TestQuery_Raw(t *testing.T) {
	s := newTestServer(t, Options{RawWhereEnabled: true})

	w := s.do(http.MethodPost, "/query/wholesaler/raw", `{"where": "region = 'EU' AND status = 'active'"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["data"], 2)

	w = s.do(http.MethodPost, "/query/wholesaler/raw", `{"where": "1=1; DROP TABLE wholesalers"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, tools.CodeRawWhereRejected, decode(t, w)["code"])

	w = s.do(http.MethodPost, "/query/wholesaler/raw", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// Entity routes
// =============================================================================

func TestDependencies(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodGet, "/dependencies/wholesaler/1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, []any{}, body["hard"])
	assert.Equal(t, []any{"1 offering link", "2 product offerings", "2 category assignments"}, body["soft"])
}

func TestDelete_SoftConflictThenCascade(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodDelete, "/entities/wholesaler/1", "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, tools.CodeDependencyConflict, body["code"])
	assert.Equal(t, true, body["cascade_available"])
	assert.Equal(t, []any{"1 offering link", "2 product offerings", "2 category assignments"}, body["soft"])
	assert.NotEmpty(t, body["op_id"])

	w = s.do(http.MethodDelete, "/entities/wholesaler/1?cascade=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, "deleted", body["outcome"])
	assert.Equal(t, "Alpha Minerals", body["deleted"].(map[string]any)["name"])
	assert.Equal(t, float64(5), body["stats"].(map[string]any)["total"])
	assert.Equal(t, w.Header().Get("X-Operation-ID"), body["op_id"])

	w = s.do(http.MethodDelete, "/entities/wholesaler/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, tools.CodeEntityNotFound, decode(t, w)["code"])
}

func TestDelete_HardConflict(t *testing.T) {
	s := newTestServer(t, Options{})
	s.db.Client.MustExec(`INSERT INTO orders (order_id, wholesaler_id, order_date) VALUES (7, 1, '2024-03-01')`)
	s.db.Client.MustExec(`INSERT INTO order_items (order_id, offering_id, quantity) VALUES (7, 10, 2)`)

	w := s.do(http.MethodDelete, "/entities/offering/10?cascade=true", "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["cascade_available"])
	assert.Equal(t, []any{"1 order item"}, body["hard"])

	w = s.do(http.MethodDelete, "/entities/offering/10?forceCascade=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["stats"].(map[string]any)["total"])
}

func TestDelete_CompositeKey(t *testing.T) {
	s := newTestServer(t, Options{})

	w := s.do(http.MethodDelete, "/entities/wholesaler_category/1/2?cascade=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, []any{float64(1), float64(2)}, body["key"])
	assert.Equal(t, float64(1), body["stats"].(map[string]any)["total"])
}

func TestDelete_BadRequests(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"non numeric id", "/entities/wholesaler/abc", http.StatusBadRequest, tools.CodeInvalidJSON},
		{"zero id", "/entities/wholesaler/0", http.StatusBadRequest, tools.CodeInvalidJSON},
		{"missing key column", "/entities/wholesaler_category/1", http.StatusBadRequest, tools.CodeInvalidJSON},
		{"unknown kind", "/entities/supplier/1", http.StatusNotFound, tools.CodeTableNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodDelete, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode(t, w)["code"])
		})
	}
}

func TestParseKey(t *testing.T) {
	key, err := parseKey("/4/9")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 9}, []int64(key))

	key, err = parseKey("/08")
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, []int64(key))

	_, err = parseKey("/")
	assert.ErrorIs(t, err, tools.ErrInvalidKey)
}

// =============================================================================
// Middleware
// =============================================================================

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "sqlite", decode(t, w)["dialect"])
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(tools.NewNopLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), tools.CodeInternalError)
}
