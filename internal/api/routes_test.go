package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MacJediWizard/orgtree/internal/api/middleware"
	"github.com/MacJediWizard/orgtree/internal/auth"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/hierarchy"
	"github.com/MacJediWizard/orgtree/internal/metrics"
	"github.com/MacJediWizard/orgtree/internal/models"
	"github.com/MacJediWizard/orgtree/internal/store"
)

type testServer struct {
	router   *Router
	keys     *auth.KeyManager
	metrics  *metrics.Metrics
	readKey  string
	writeKey string
}

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Pagination *models.Pagination `json:"pagination"`
	Message    string             `json:"message"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zerolog.New(zerolog.NewTestWriter(t))

	cfg := db.DefaultConfig("")
	cfg.SQLitePath = filepath.Join(t.TempDir(), "api.db")
	lite, err := db.NewSQLite(ctx, cfg, logger)
	require.NoError(t, err)
	require.NoError(t, lite.Migrate(ctx))

	m := metrics.New()
	exec := db.NewInstrumented(lite, m)
	stores := store.New(exec, store.DefaultOptions())
	t.Cleanup(stores.Close)

	usage := auth.NewUsageRecorder(stores.APIKeys, 16, m.UsageDropped, logger)
	t.Cleanup(usage.Close)
	gate := auth.NewGate(stores.APIKeys, usage, m, auth.GateConfig{}, logger)
	keys := auth.NewKeyManager(stores.APIKeys, bcrypt.MinCost, logger)

	sessions, err := auth.NewSessionStore(auth.DefaultSessionConfig([]byte("test-secret-that-is-at-least-32-bytes-long"), false), logger)
	require.NoError(t, err)
	operator, err := auth.NewOperator("admin", "", "correct horse")
	require.NoError(t, err)

	routerCfg := DefaultConfig()
	routerCfg.RateLimitRequests = 0
	router, err := NewRouter(routerCfg, Dependencies{
		Database: exec,
		Service:  hierarchy.NewService(stores, hierarchy.DefaultRetryConfig(), logger),
		Composer: hierarchy.NewComposer(stores, hierarchy.DefaultRetryConfig(), logger),
		Gate:     gate,
		Keys:     keys,
		Sessions: sessions,
		Operator: operator,
		Metrics:  m,
	}, logger)
	require.NoError(t, err)

	s := &testServer{router: router, keys: keys, metrics: m}
	s.readKey = s.issueKey(t, models.PermissionRead)
	s.writeKey = s.issueKey(t, models.PermissionReadWrite)
	return s
}

func (s *testServer) issueKey(t *testing.T, p models.Permission) string {
	t.Helper()
	created, err := s.keys.Create(context.Background(), &models.APIKeyInput{AppName: "test " + p.String(), Permission: p})
	require.NoError(t, err)
	return created.Key
}

func (s *testServer) do(t *testing.T, method, path, key string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *testServer) seed(t *testing.T) {
	t.Helper()
	for _, step := range []struct {
		path string
		body any
	}{
		{"/api/v1/companies", map[string]any{"company_code": "ACME", "name_th": "แอคมี", "name_en": "Acme", "tax_id": "0105551234567"}},
		{"/api/v1/companies", map[string]any{"company_code": "OTHER", "name_th": "อื่น", "tax_id": "0105559876543"}},
		{"/api/v1/branches", map[string]any{"branch_code": "ACME-HQ", "company_code": "ACME", "name": "Head Office", "is_headquarters": true}},
		{"/api/v1/branches", map[string]any{"branch_code": "OTHER-HQ", "company_code": "OTHER", "name": "Other HQ", "is_headquarters": true}},
		{"/api/v1/divisions", map[string]any{"division_code": "ACME-DIV1", "company_code": "ACME", "branch_code": "ACME-HQ", "name": "Operations"}},
		{"/api/v1/departments", map[string]any{"department_code": "ACME-D1", "division_code": "ACME-DIV1", "name": "Payroll"}},
	} {
		w, env := s.do(t, http.MethodPost, step.path, s.writeKey, step.body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.True(t, env.Success)
	}
}

func TestReadKeyPermissions(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/companies", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/companies"},
		{http.MethodPut, "/api/v1/companies/ACME"},
		{http.MethodPatch, "/api/v1/companies/ACME/status"},
		{http.MethodDelete, "/api/v1/companies/ACME"},
	} {
		w, env := s.do(t, tc.method, tc.path, s.readKey, map[string]any{"name_th": "x"})
		assert.Equal(t, http.StatusForbidden, w.Code, tc.method+" "+tc.path)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INSUFFICIENT_PERMISSION", env.Error.Code)
	}

	w, env = s.do(t, http.MethodGet, "/api/v1/companies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_CREDENTIAL", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/companies", "ohk_garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIAL", env.Error.Code)
}

func TestDeleteCompanyWithActiveHeadquarters(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	// Clear the rest of the subtree so the branch is the only dependent.
	for _, path := range []string{"/api/v1/departments/ACME-D1/status", "/api/v1/divisions/ACME-DIV1/status"} {
		w, _ := s.do(t, http.MethodPatch, path, s.writeKey, map[string]any{"is_active": false})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, env := s.do(t, http.MethodDelete, "/api/v1/companies/ACME", s.writeKey, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "HAS_ACTIVE_CHILDREN", env.Error.Code)

	// Toggle with no body flips the flag.
	w, env = s.do(t, http.MethodPatch, "/api/v1/branches/ACME-HQ/status", s.writeKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var branch models.Branch
	require.NoError(t, json.Unmarshal(env.Data, &branch))
	assert.False(t, branch.IsActive)

	w, env = s.do(t, http.MethodDelete, "/api/v1/departments/ACME-D1", s.writeKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"department_code":"ACME-D1"}`, string(env.Data))

	w, env = s.do(t, http.MethodDelete, "/api/v1/companies/ACME", s.writeKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"company_code":"ACME"}`, string(env.Data))
	assert.Equal(t, "company ACME deleted", env.Message)

	w, env = s.do(t, http.MethodGet, "/api/v1/companies/ACME", s.readKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestIntegrityErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "second headquarters",
			path:   "/api/v1/branches",
			body:   map[string]any{"branch_code": "ACME-BKK", "company_code": "ACME", "name": "Bangkok", "is_headquarters": true},
			status: http.StatusConflict,
			code:   "DUPLICATE_HEADQUARTERS",
		},
		{
			name:   "cross company branch",
			path:   "/api/v1/divisions",
			body:   map[string]any{"division_code": "ACME-DIV2", "company_code": "ACME", "branch_code": "OTHER-HQ", "name": "Sales"},
			status: http.StatusBadRequest,
			code:   "CROSS_COMPANY_REFERENCE",
		},
		{
			name:   "duplicate code",
			path:   "/api/v1/companies",
			body:   map[string]any{"company_code": "ACME", "name_th": "ซ้ำ", "tax_id": "0105551234567"},
			status: http.StatusConflict,
			code:   "ALREADY_EXISTS",
		},
		{
			name:   "missing parent",
			path:   "/api/v1/branches",
			body:   map[string]any{"branch_code": "NOPE-HQ", "company_code": "NOPE", "name": "Nowhere"},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "missing tax id",
			path:   "/api/v1/companies",
			body:   map[string]any{"company_code": "NOTAX", "name_th": "ไม่มี"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
		},
		{
			name:   "missing name",
			path:   "/api/v1/companies",
			body:   map[string]any{"company_code": "NEW", "tax_id": "0105550000001"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, tt.path, s.writeKey, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/companies", strings.NewReader("{not json"))
	req.Header.Set("X-API-Key", s.writeKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
}

func TestListPaginationAndFilters(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	for _, code := range []string{"ACME-B1", "ACME-B2", "ACME-B3"} {
		w, _ := s.do(t, http.MethodPost, "/api/v1/branches", s.writeKey,
			map[string]any{"branch_code": code, "company_code": "ACME", "name": "Branch " + code})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, _ := s.do(t, http.MethodPatch, "/api/v1/branches/ACME-B3/status", s.writeKey, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)

	// Active only by default.
	w, env := s.do(t, http.MethodGet, "/api/v1/branches?company_code=ACME&limit=2&sort=code&order=desc", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var branches []models.Branch
	require.NoError(t, json.Unmarshal(env.Data, &branches))
	require.Len(t, branches, 2)
	assert.Equal(t, "ACME-HQ", branches[0].BranchCode)
	assert.Equal(t, models.Pagination{Page: 1, Limit: 2, Total: 3, Pages: 2}, *env.Pagination)

	w, env = s.do(t, http.MethodGet, "/api/v1/branches?company_code=ACME&is_active=all", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), env.Pagination.Total)

	w, env = s.do(t, http.MethodGet, "/api/v1/branches?is_active=false", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), env.Pagination.Total)

	w, env = s.do(t, http.MethodGet, "/api/v1/departments?company_code=ACME", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), env.Pagination.Total)

	w, env = s.do(t, http.MethodGet, "/api/v1/divisions?company_code=OTHER", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(env.Data))

	for _, bad := range []string{"?page=x", "?order=sideways", "?sort=password", "?is_active=maybe"} {
		w, env = s.do(t, http.MethodGet, "/api/v1/branches"+bad, s.readKey, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code, bad)
	}
}

func TestTreeRoutes(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)

	w, env := s.do(t, http.MethodGet, "/api/v1/organization-tree/ACME", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tree models.CompanyNode
	require.NoError(t, json.Unmarshal(env.Data, &tree))
	require.Len(t, tree.Branches, 1)
	require.Len(t, tree.Branches[0].Divisions, 1)
	assert.Len(t, tree.Branches[0].Divisions[0].Departments, 1)

	w, env = s.do(t, http.MethodGet, "/api/v1/organization-tree", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var forest []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &forest))
	assert.Len(t, forest, 2)

	w, env = s.do(t, http.MethodGet, "/api/v1/flexible/ACME?exclude=divisions", s.readKey, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var nodes []struct {
		Level    string `json:"level"`
		Code     string `json:"code"`
		Children []struct {
			Level    string `json:"level"`
			Children []struct {
				Level string `json:"level"`
				Code  string `json:"code"`
			} `json:"children"`
		} `json:"children"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &nodes))
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, "branch", nodes[0].Children[0].Level)
	require.Len(t, nodes[0].Children[0].Children, 1)
	assert.Equal(t, "department", nodes[0].Children[0].Children[0].Level)

	w, env = s.do(t, http.MethodGet, "/api/v1/flexible?exclude=companies", s.readKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/organization-tree/NOPE", s.readKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestWebPathIssuesUsableKeys(t *testing.T) {
	s := newTestServer(t)

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"wrong"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, loginReq)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	loginReq = httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"admin","password":"correct horse"}`))
	loginReq.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, loginReq)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	var info struct {
		CSRFToken string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(login.Data, &info))
	require.NotEmpty(t, info.CSRFToken)
	cookies := w.Result().Cookies()

	webRequest := func(method, path, body string, csrf bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		if csrf {
			req.Header.Set(middleware.CSRFHeader, info.CSRFToken)
		}
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	w = webRequest(http.MethodPost, "/web/v1/api-keys", `{"app_name":"HR","permission":"read"}`, false)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = webRequest(http.MethodPost, "/web/v1/api-keys", `{"app_name":"HR","permission":"read"}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	var key struct {
		ID      string `json:"api_key_id"`
		Key     string `json:"key"`
		KeyHash string `json:"key_hash"`
	}
	require.NoError(t, json.Unmarshal(created.Data, &key))
	require.True(t, auth.IsValidAPIKeyFormat(key.Key))
	assert.Empty(t, key.KeyHash)

	// Operator writes are stamped with the operator actor.
	w = webRequest(http.MethodPost, "/web/v1/companies", `{"company_code":"WEB","name_th":"เว็บ","tax_id":"0105550000002"}`, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"created_by":"operator:admin"`)

	w, _ = s.do(t, http.MethodGet, "/api/v1/companies/WEB", key.Key, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = webRequest(http.MethodPatch, "/web/v1/api-keys/"+key.ID+"/status", `{"is_active":false}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodGet, "/api/v1/companies/WEB", key.Key, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = webRequest(http.MethodGet, "/web/v1/api-keys", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "key_hash")

	w = webRequest(http.MethodPost, "/auth/logout", "", false)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"up"`)
	assert.Contains(t, w.Body.String(), `"backend":"sqlite"`)
	assert.Contains(t, w.Body.String(), `"schema_version":1`)

	w, _ = s.do(t, http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"backend":"sqlite"`)

	w, env := s.do(t, http.MethodGet, "/does/not/exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	s.do(t, http.MethodGet, "/api/v1/companies", s.readKey, nil)
	w, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `orgtree_http_requests_total{method="GET",route="/api/v1/companies",status="200"}`)
	assert.Contains(t, body, `orgtree_auth_decisions_total{outcome="authorized"}`)
	assert.Contains(t, body, `orgtree_db_statement_duration_seconds`)
}
