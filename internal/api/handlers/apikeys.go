package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// KeyAdministrator issues and administers API keys.
type KeyAdministrator interface {
	Create(ctx context.Context, in *models.APIKeyInput) (*models.CreatedAPIKey, error)
	Get(ctx context.Context, id string) (*models.APIKey, error)
	List(ctx context.Context, f models.APIKeyFilter, req models.PageRequest) (*models.Page[*models.APIKey], error)
	SetStatus(ctx context.Context, id string, active *bool) (*models.APIKey, error)
	Delete(ctx context.Context, id string) error
}

// APIKeysHandler handles API key administration endpoints.
type APIKeysHandler struct {
	keys   KeyAdministrator
	logger zerolog.Logger
}

// NewAPIKeysHandler creates a new APIKeysHandler.
func NewAPIKeysHandler(keys KeyAdministrator, logger zerolog.Logger) *APIKeysHandler {
	return &APIKeysHandler{
		keys:   keys,
		logger: logger.With().Str("component", "apikeys_handler").Logger(),
	}
}

// RegisterRoutes registers API key routes on the given router group.
func (h *APIKeysHandler) RegisterRoutes(r *gin.RouterGroup) {
	keys := r.Group("/api-keys")
	{
		keys.GET("", h.List)
		keys.POST("", h.Create)
		keys.GET("/:id", h.Get)
		keys.PATCH("/:id/status", h.SetStatus)
		keys.DELETE("/:id", h.Delete)
	}
}

// List returns one page of API keys. Revoked keys are included unless
// is_active is given.
// GET /web/v1/api-keys?search=&is_active=
func (h *APIKeysHandler) List(c *gin.Context) {
	req, err := pageRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}
	active, err := optionalBool(c, "is_active")
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.keys.List(c.Request.Context(), models.APIKeyFilter{
		Search:   c.Query("search"),
		IsActive: active,
	}, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// Get returns one API key record. The secret is never included.
// GET /web/v1/api-keys/:id
func (h *APIKeysHandler) Get(c *gin.Context) {
	key, err := h.keys.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, key)
}

// Create issues a new API key. The plaintext key is returned only here.
// POST /web/v1/api-keys
func (h *APIKeysHandler) Create(c *gin.Context) {
	var in models.APIKeyInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err)
		return
	}

	created, err := h.keys.Create(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    created,
		Message: "store this key now; it cannot be shown again",
	})
}

// SetStatus enables, revokes or toggles an API key.
// PATCH /web/v1/api-keys/:id/status
func (h *APIKeysHandler) SetStatus(c *gin.Context) {
	active, err := bindStatus(c)
	if err != nil {
		respondError(c, err)
		return
	}

	key, err := h.keys.SetStatus(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, key)
}

// Delete removes an API key.
// DELETE /web/v1/api-keys/:id
func (h *APIKeysHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.keys.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, "api_key_id", id, "api key")
}
