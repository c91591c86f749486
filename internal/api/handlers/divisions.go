package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// DivisionService defines the interface for division operations.
type DivisionService interface {
	GetDivision(ctx context.Context, code string) (*models.Division, error)
	ListDivisions(ctx context.Context, f models.DivisionFilter, req models.PageRequest) (*models.Page[*models.Division], error)
	CreateDivision(ctx context.Context, in *models.DivisionInput) (*models.Division, error)
	UpdateDivision(ctx context.Context, code string, p *models.DivisionPatch) (*models.Division, error)
	SetDivisionStatus(ctx context.Context, code string, active *bool) (*models.Division, error)
	DeleteDivision(ctx context.Context, code string) error
}

// DivisionsHandler handles division HTTP endpoints.
type DivisionsHandler struct {
	service DivisionService
	logger  zerolog.Logger
}

// NewDivisionsHandler creates a new DivisionsHandler.
func NewDivisionsHandler(service DivisionService, logger zerolog.Logger) *DivisionsHandler {
	return &DivisionsHandler{
		service: service,
		logger:  logger.With().Str("component", "divisions_handler").Logger(),
	}
}

// RegisterRoutes registers division routes on the given router group.
func (h *DivisionsHandler) RegisterRoutes(r *gin.RouterGroup) {
	divisions := r.Group("/divisions")
	{
		divisions.GET("", h.List)
		divisions.POST("", h.Create)
		divisions.GET("/:code", h.Get)
		divisions.PUT("/:code", h.Update)
		divisions.PATCH("/:code/status", h.SetStatus)
		divisions.DELETE("/:code", h.Delete)
	}
}

// List returns one page of divisions.
// GET /api/v1/divisions?company_code=&branch_code=&unassigned=true
func (h *DivisionsHandler) List(c *gin.Context) {
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
	unassigned, err := optionalBool(c, "unassigned")
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.service.ListDivisions(c.Request.Context(), models.DivisionFilter{
		Search:      c.Query("search"),
		IsActive:    active,
		CompanyCode: c.Query("company_code"),
		BranchCode:  c.Query("branch_code"),
		Unassigned:  unassigned != nil && *unassigned,
	}, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// Get returns a single division.
// GET /api/v1/divisions/:code
func (h *DivisionsHandler) Get(c *gin.Context) {
	division, err := h.service.GetDivision(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, division)
}

// Create creates a division.
// POST /api/v1/divisions
func (h *DivisionsHandler) Create(c *gin.Context) {
	var in models.DivisionInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	division, err := h.service.CreateDivision(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, division)
}

// Update applies a partial update to a division. A null branch_code
// detaches it from its branch.
// PUT /api/v1/divisions/:code
func (h *DivisionsHandler) Update(c *gin.Context) {
	var patch models.DivisionPatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}

	division, err := h.service.UpdateDivision(c.Request.Context(), c.Param("code"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, division)
}

// SetStatus activates, deactivates or toggles a division.
// PATCH /api/v1/divisions/:code/status
func (h *DivisionsHandler) SetStatus(c *gin.Context) {
	active, err := bindStatus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	division, err := h.service.SetDivisionStatus(c.Request.Context(), c.Param("code"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, division)
}

// Delete removes a division.
// DELETE /api/v1/divisions/:code
func (h *DivisionsHandler) Delete(c *gin.Context) {
	code := c.Param("code")
	if err := h.service.DeleteDivision(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, "division_code", code, "division")
}
