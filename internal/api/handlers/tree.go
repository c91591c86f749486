package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// TreeComposer builds the composed hierarchy views.
type TreeComposer interface {
	FullTree(ctx context.Context) ([]*models.CompanyNode, error)
	CompanyTree(ctx context.Context, code string) (*models.CompanyNode, error)
	Flexible(ctx context.Context, opts models.FlexibleOptions) ([]*models.Node, error)
}

// TreeHandler serves the organization tree and the flexible level view.
type TreeHandler struct {
	composer TreeComposer
	logger   zerolog.Logger
}

// NewTreeHandler creates a new TreeHandler.
func NewTreeHandler(composer TreeComposer, logger zerolog.Logger) *TreeHandler {
	return &TreeHandler{
		composer: composer,
		logger:   logger.With().Str("component", "tree_handler").Logger(),
	}
}

// RegisterRoutes registers the tree routes on the given router group.
func (h *TreeHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/organization-tree", h.FullTree)
	r.GET("/organization-tree/:company_code", h.CompanyTree)
	r.GET("/flexible", h.Flexible)
	r.GET("/flexible/:company_code", h.Flexible)
}

// FullTree returns every active company with its active descendants.
// GET /api/v1/organization-tree
func (h *TreeHandler) FullTree(c *gin.Context) {
	tree, err := h.composer.FullTree(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, tree)
}

// CompanyTree returns one active company with its active descendants.
// GET /api/v1/organization-tree/:company_code
func (h *TreeHandler) CompanyTree(c *gin.Context) {
	node, err := h.composer.CompanyTree(c.Request.Context(), c.Param("company_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, node)
}

// Flexible returns the hierarchy restricted to the requested levels.
// GET /api/v1/flexible?company_code=&include=&exclude=
// GET /api/v1/flexible/:company_code?include=&exclude=
func (h *TreeHandler) Flexible(c *gin.Context) {
	levels, err := models.ParseLevels(c.Query("include"), c.Query("exclude"))
	if err != nil {
		respondError(c, err)
		return
	}
	code := c.Param("company_code")
	if code == "" {
		code = c.Query("company_code")
	}

	nodes, err := h.composer.Flexible(c.Request.Context(), models.FlexibleOptions{
		CompanyCode: code,
		Levels:      levels,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nodes)
}
