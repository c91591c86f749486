package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStorage struct {
	pingErr    error
	version    int
	versionErr error
}

func (f *fakeStorage) Ping(context.Context) error { return f.pingErr }

func (f *fakeStorage) Health() map[string]any {
	return map[string]any{"open_connections": 1}
}

func (f *fakeStorage) CurrentVersion(context.Context) (int, error) { return f.version, f.versionErr }

func setupHealthTestRouter(storage Storage, rateLimitStore PingFunc) *gin.Engine {
	r := gin.New()
	NewHealthHandler(storage, StorageInfo{Backend: "sqlite", LatestVersion: 2}, rateLimitStore, zerolog.Nop()).RegisterPublicRoutes(r)
	return r
}

func TestHealth(t *testing.T) {
	failing := func(context.Context) error { return errors.New("connection refused") }
	healthy := func(context.Context) error { return nil }

	tests := []struct {
		name           string
		storage        Storage
		rateLimitStore PingFunc
		path           string
		want           int
		state          CheckState
	}{
		{name: "all up", storage: &fakeStorage{version: 2}, path: "/health", want: http.StatusOK, state: StateUp},
		{name: "shared rate limit store up", storage: &fakeStorage{version: 2}, rateLimitStore: healthy, path: "/health", want: http.StatusOK, state: StateUp},
		{name: "storage down", storage: &fakeStorage{pingErr: errors.New("connection refused")}, path: "/health", want: http.StatusServiceUnavailable, state: StateDown},
		{name: "rate limit store down", storage: &fakeStorage{version: 2}, rateLimitStore: failing, path: "/health", want: http.StatusServiceUnavailable, state: StateDown},
		{name: "pending migration", storage: &fakeStorage{version: 1}, path: "/health", want: http.StatusOK, state: StateDegraded},
		{name: "unknown schema version", storage: &fakeStorage{versionErr: errors.New("connection refused")}, path: "/health/db", want: http.StatusOK, state: StateDegraded},
		{name: "no storage", path: "/health/db", want: http.StatusServiceUnavailable, state: StateDown},
		{name: "db endpoint ignores rate limit store", storage: &fakeStorage{version: 2}, rateLimitStore: failing, path: "/health/db", want: http.StatusOK, state: StateUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupHealthTestRouter(tt.storage, tt.rateLimitStore)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tt.path, nil)
			r.ServeHTTP(w, req)

			require.Equal(t, tt.want, w.Code, w.Body.String())
			var resp HealthReport
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.state, resp.Status)
			assert.Equal(t, "sqlite", resp.Backend)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}

func TestHealthReportsSchemaVersion(t *testing.T) {
	r := setupHealthTestRouter(&fakeStorage{version: 1}, nil)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health/db", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	storage := resp.Checks["storage"]
	require.NotNil(t, storage)
	assert.Equal(t, StateDegraded, storage.State)
	assert.Equal(t, "1 schema migration(s) pending", storage.Problem)
	assert.EqualValues(t, 1, storage.Details["schema_version"])
	assert.EqualValues(t, 2, storage.Details["latest_schema_version"])
	assert.EqualValues(t, 1, storage.Details["open_connections"])
}

func TestVersionGet(t *testing.T) {
	r := gin.New()
	NewVersionHandler(VersionInfo{Version: "1.0.0", Commit: "abc1234", Backend: "postgres"}, zerolog.Nop()).RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/version", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp VersionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, VersionInfo{Version: "1.0.0", Commit: "abc1234", Backend: "postgres"}, resp)
}

// fakeCompanyService records what the handler passed down.
type fakeCompanyService struct {
	filter models.CompanyFilter
	page   models.PageRequest
	active *bool
	err    error
}

func (f *fakeCompanyService) GetCompany(_ context.Context, code string) (*models.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Company{CompanyCode: code, IsActive: true}, nil
}

func (f *fakeCompanyService) ListCompanies(_ context.Context, filter models.CompanyFilter, req models.PageRequest) (*models.Page[*models.Company], error) {
	f.filter, f.page = filter, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Page[*models.Company]{Pagination: models.NewPagination(models.PageRequest{Page: 1, Limit: 20}, 0)}, nil
}

func (f *fakeCompanyService) CreateCompany(_ context.Context, in *models.CompanyInput) (*models.Company, error) {
	return in.Company(), f.err
}

func (f *fakeCompanyService) UpdateCompany(_ context.Context, code string, _ *models.CompanyPatch) (*models.Company, error) {
	return &models.Company{CompanyCode: code}, f.err
}

func (f *fakeCompanyService) SetCompanyStatus(_ context.Context, code string, active *bool) (*models.Company, error) {
	f.active = active
	return &models.Company{CompanyCode: code}, f.err
}

func (f *fakeCompanyService) DeleteCompany(context.Context, string) error { return f.err }

func setupCompaniesRouter(svc CompanyService) *gin.Engine {
	r := gin.New()
	NewCompaniesHandler(svc, zerolog.Nop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestCompaniesListQuery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		active *bool
		page   models.PageRequest
	}{
		{name: "defaults to active", query: "", active: boolPtr(true)},
		{name: "all lifts the filter", query: "?is_active=all", active: nil},
		{name: "inactive only", query: "?is_active=false", active: boolPtr(false)},
		{
			name:   "paging and sort",
			query:  "?page=3&limit=5&sort=name&order=DESC&search=acme",
			active: boolPtr(true),
			page:   models.PageRequest{Page: 3, Limit: 5, Sort: "name", Order: "desc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCompanyService{}
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/v1/companies"+tt.query, nil)
			setupCompaniesRouter(svc).ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.active, svc.filter.IsActive)
			assert.Equal(t, tt.page, svc.page)
			assert.JSONEq(t, `{"success":true,"data":[],"pagination":{"page":1,"limit":20,"total":0,"pages":0}}`, w.Body.String())
		})
	}
}

func TestCompaniesSetStatusBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *bool
		code int
	}{
		{name: "no body toggles", body: "", want: nil, code: http.StatusOK},
		{name: "null toggles", body: `{"is_active":null}`, want: nil, code: http.StatusOK},
		{name: "explicit false", body: `{"is_active":false}`, want: boolPtr(false), code: http.StatusOK},
		{name: "malformed", body: `{"is_active":"yes"}`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCompanyService{}
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("PATCH", "/api/v1/companies/ACME/status", strings.NewReader(tt.body))
			setupCompaniesRouter(svc).ServeHTTP(w, req)

			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code == http.StatusOK {
				assert.Equal(t, tt.want, svc.active)
			}
		})
	}
}

func TestCompaniesDeleteEchoesCode(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/companies/ACME", nil)
	setupCompaniesRouter(&fakeCompanyService{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"company_code": "ACME"}, resp.Data)
	assert.Equal(t, "company ACME deleted", resp.Message)
}

func TestCompaniesErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    apperr.Code
		message string
	}{
		{name: "not found", err: apperr.NotFound("company", "ACME"), status: http.StatusNotFound, code: apperr.CodeNotFound},
		{name: "backend down", err: apperr.BackendUnavailable(errors.New("dial tcp: refused")), status: http.StatusServiceUnavailable, code: apperr.CodeBackendUnavailable},
		{name: "unexpected", err: errors.New("pq: secret detail"), status: http.StatusInternalServerError, code: apperr.CodeInternal, message: "internal server error"},
		{name: "wrapped", err: fmtWrap(apperr.HasActiveChildren("company", "ACME", 2)), status: http.StatusConflict, code: apperr.CodeHasActiveChildren},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/v1/companies/ACME", nil)
			setupCompaniesRouter(&fakeCompanyService{err: tt.err}).ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			var resp struct {
				Success bool `json:"success"`
				Error   struct {
					Code    apperr.Code `json:"code"`
					Message string      `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotContains(t, resp.Error.Message, "secret detail")
			assert.NotContains(t, resp.Error.Message, "dial tcp")
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestCompaniesCreateRejectsBadBodies(t *testing.T) {
	for _, body := range []string{"", "{", `{"company_code": 5}`} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/companies", strings.NewReader(body))
		setupCompaniesRouter(&fakeCompanyService{}).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), string(apperr.CodeValidationFailed), body)
	}
}

func boolPtr(b bool) *bool { return &b }

func fmtWrap(err error) error { return errors.Join(errors.New("delete company"), err) }
