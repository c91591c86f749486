package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// BranchService defines the interface for branch operations.
type BranchService interface {
	GetBranch(ctx context.Context, code string) (*models.Branch, error)
	ListBranches(ctx context.Context, f models.BranchFilter, req models.PageRequest) (*models.Page[*models.Branch], error)
	CreateBranch(ctx context.Context, in *models.BranchInput) (*models.Branch, error)
	UpdateBranch(ctx context.Context, code string, p *models.BranchPatch) (*models.Branch, error)
	SetBranchStatus(ctx context.Context, code string, active *bool) (*models.Branch, error)
	DeleteBranch(ctx context.Context, code string) error
}

// BranchesHandler handles branch HTTP endpoints.
type BranchesHandler struct {
	service BranchService
	logger  zerolog.Logger
}

// NewBranchesHandler creates a new BranchesHandler.
func NewBranchesHandler(service BranchService, logger zerolog.Logger) *BranchesHandler {
	return &BranchesHandler{
		service: service,
		logger:  logger.With().Str("component", "branches_handler").Logger(),
	}
}

// RegisterRoutes registers branch routes on the given router group.
func (h *BranchesHandler) RegisterRoutes(r *gin.RouterGroup) {
	branches := r.Group("/branches")
	{
		branches.GET("", h.List)
		branches.POST("", h.Create)
		branches.GET("/:code", h.Get)
		branches.PUT("/:code", h.Update)
		branches.PATCH("/:code/status", h.SetStatus)
		branches.DELETE("/:code", h.Delete)
	}
}

// List returns one page of branches.
// GET /api/v1/branches?company_code=&is_headquarters=&search=&is_active=
func (h *BranchesHandler) List(c *gin.Context) {
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
	hq, err := optionalBool(c, "is_headquarters")
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.service.ListBranches(c.Request.Context(), models.BranchFilter{
		Search:         c.Query("search"),
		IsActive:       active,
		CompanyCode:    c.Query("company_code"),
		IsHeadquarters: hq,
	}, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// Get returns a single branch.
// GET /api/v1/branches/:code
func (h *BranchesHandler) Get(c *gin.Context) {
	branch, err := h.service.GetBranch(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, branch)
}

// Create creates a branch under an active company.
// POST /api/v1/branches
func (h *BranchesHandler) Create(c *gin.Context) {
	var in models.BranchInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	branch, err := h.service.CreateBranch(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, branch)
}

// Update applies a partial update to a branch.
// PUT /api/v1/branches/:code
func (h *BranchesHandler) Update(c *gin.Context) {
	var patch models.BranchPatch
	if err := bindJSON(c, &patch); err != nil {
		respondError(c, err)
		return
	}

	branch, err := h.service.UpdateBranch(c.Request.Context(), c.Param("code"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, branch)
}

// SetStatus activates, deactivates or toggles a branch.
// PATCH /api/v1/branches/:code/status
func (h *BranchesHandler) SetStatus(c *gin.Context) {
	active, err := bindStatus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	branch, err := h.service.SetBranchStatus(c.Request.Context(), c.Param("code"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, branch)
}

// Delete removes a branch.
// DELETE /api/v1/branches/:code
func (h *BranchesHandler) Delete(c *gin.Context) {
	code := c.Param("code")
	if err := h.service.DeleteBranch(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, "branch_code", code, "branch")
}
