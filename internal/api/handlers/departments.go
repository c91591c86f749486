package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// DepartmentService defines the interface for department operations.
type DepartmentService interface {
	GetDepartment(ctx context.Context, code string) (*models.Department, error)
	ListDepartments(ctx context.Context, f models.DepartmentFilter, req models.PageRequest) (*models.Page[*models.Department], error)
	CreateDepartment(ctx context.Context, in *models.DepartmentInput) (*models.Department, error)
	UpdateDepartment(ctx context.Context, code string, p *models.DepartmentPatch) (*models.Department, error)
	SetDepartmentStatus(ctx context.Context, code string, active *bool) (*models.Department, error)
	DeleteDepartment(ctx context.Context, code string) error
}

// DepartmentsHandler handles department HTTP endpoints.
type DepartmentsHandler struct {
	service DepartmentService
	logger  zerolog.Logger
}

// NewDepartmentsHandler creates a new DepartmentsHandler.
func NewDepartmentsHandler(service DepartmentService, logger zerolog.Logger) *DepartmentsHandler {
	return &DepartmentsHandler{
		service: service,
		logger:  logger.With().Str("component", "departments_handler").Logger(),
	}
}

// RegisterRoutes registers department routes on the given router group.
func (h *DepartmentsHandler) RegisterRoutes(r *gin.RouterGroup) {
	departments := r.Group("/departments")
	{
		departments.GET("", h.List)
		departments.POST("", h.Create)
		departments.GET("/:code", h.Get)
		departments.PUT("/:code", h.Update)
		departments.PATCH("/:code/status", h.SetStatus)
		departments.DELETE("/:code", h.Delete)
	}
}

// List returns one page of departments. company_code matches through the
// owning division.
// GET /api/v1/departments?division_code=&company_code=
func (h *DepartmentsHandler) List(c *gin.Context) {
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

	page, err := h.service.ListDepartments(c.Request.Context(), models.DepartmentFilter{
		Search:       c.Query("search"),
		IsActive:     active,
		DivisionCode: c.Query("division_code"),
		CompanyCode:  c.Query("company_code"),
	}, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// Get returns a single department.
// GET /api/v1/departments/:code
func (h *DepartmentsHandler) Get(c *gin.Context) {
	department, err := h.service.GetDepartment(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, department)
}

// Create creates a department under an active division.
// POST /api/v1/departments
func (h *DepartmentsHandler) Create(c *gin.Context) {
	var in models.DepartmentInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	department, err := h.service.CreateDepartment(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, department)
}

// Update applies a partial update to a department.
// PUT /api/v1/departments/:code
func (h *DepartmentsHandler) Update(c *gin.Context) {
	var patch models.DepartmentPatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}

	department, err := h.service.UpdateDepartment(c.Request.Context(), c.Param("code"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, department)
}

// SetStatus activates, deactivates or toggles a department.
// PATCH /api/v1/departments/:code/status
func (h *DepartmentsHandler) SetStatus(c *gin.Context) {
	active, err := bindStatus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	department, err := h.service.SetDepartmentStatus(c.Request.Context(), c.Param("code"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, department)
}

// Delete removes a department.
// DELETE /api/v1/departments/:code
func (h *DepartmentsHandler) Delete(c *gin.Context) {
	code := c.Param("code")
	if err := h.service.DeleteDepartment(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, "department_code", code, "department")
}
