package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// CompanyService defines the interface for company operations.
type CompanyService interface {
	GetCompany(ctx context.Context, code string) (*models.Company, error)
	ListCompanies(ctx context.Context, f models.CompanyFilter, req models.PageRequest) (*models.Page[*models.Company], error)
	CreateCompany(ctx context.Context, in *models.CompanyInput) (*models.Company, error)
	UpdateCompany(ctx context.Context, code string, p *models.CompanyPatch) (*models.Company, error)
	SetCompanyStatus(ctx context.Context, code string, active *bool) (*models.Company, error)
	DeleteCompany(ctx context.Context, code string) error
}

// CompaniesHandler handles company HTTP endpoints.
type CompaniesHandler struct {
	service CompanyService
	logger  zerolog.Logger
}

// NewCompaniesHandler creates a new CompaniesHandler.
func NewCompaniesHandler(service CompanyService, logger zerolog.Logger) *CompaniesHandler {
	return &CompaniesHandler{
		service: service,
		logger:  logger.With().Str("component", "companies_handler").Logger(),
	}
}

// RegisterRoutes registers company routes on the given router group.
func (h *CompaniesHandler) RegisterRoutes(r *gin.RouterGroup) {
	companies := r.Group("/companies")
	{
		companies.GET("", h.List)
		companies.POST("", h.Create)
		companies.GET("/:code", h.Get)
		companies.PUT("/:code", h.Update)
		companies.PATCH("/:code/status", h.SetStatus)
		companies.DELETE("/:code", h.Delete)
	}
}

// List returns one page of companies.
// GET /api/v1/companies?page=&limit=&search=&is_active=&sort=&order=
func (h *CompaniesHandler) List(c *gin.Context) {
	req, err := pageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}
	active, err := activeFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.service.ListCompanies(c.Request.Context(), models.CompanyFilter{
		Search:   c.Query("search"),
		IsActive: active,
	}, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// Get returns a single company.
// GET /api/v1/companies/:code
func (h *CompaniesHandler) Get(c *gin.Context) {
	company, err := h.service.GetCompany(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, company)
}

// Create creates a company.
// POST /api/v1/companies
func (h *CompaniesHandler) Create(c *gin.Context) {
	var in models.CompanyInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	company, err := h.service.CreateCompany(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, company)
}

// Update applies a partial update to a company.
// PUT /api/v1/companies/:code
func (h *CompaniesHandler) Update(c *gin.Context) {
	var patch models.CompanyPatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}

	company, err := h.service.UpdateCompany(c.Request.Context(), c.Param("code"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, company)
}

// SetStatus activates, deactivates or toggles a company.
// PATCH /api/v1/companies/:code/status
func (h *CompaniesHandler) SetStatus(c *gin.Context) {
	active, err := bindStatus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	company, err := h.service.SetCompanyStatus(c.Request.Context(), c.Param("code"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, company)
}

// Delete removes a company.
// DELETE /api/v1/companies/:code
func (h *CompaniesHandler) Delete(c *gin.Context) {
	code := c.Param("code")
	if err := h.service.DeleteCompany(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, "company_code", code, "company")
}
