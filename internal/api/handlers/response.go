// Package handlers implements the orgtree REST endpoints.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MacJediWizard/orgtree/internal/api/middleware"
	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/models"
)

// Response is the envelope of every successful response.
type Response struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Message    string             `json:"message,omitempty"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

func respondPage[T any](c *gin.Context, page *models.Page[T]) {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	pagination := page.Pagination
	c.JSON(http.StatusOK, Response{Success: true, Data: items, Pagination: &pagination})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// respondDeleted echoes the removed key under its wire name.
func respondDeleted(c *gin.Context, field, key, label string) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    gin.H{field: key},
		Message: label + " " + key + " deleted",
	})
}

func respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

// bindJSON decodes the request body into dst. Decoding failures are the
// caller's fault and map to VALIDATION_FAILED.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.Validation("request body is required")
		case errors.As(err, &maxErr):
			return apperr.Validation("request body exceeds %d bytes", maxErr.Limit)
		default:
			return apperr.Validation("invalid request body")
		}
	}
	return nil
}

// statusRequest is the optional body of PATCH .../status. A missing body or
// a null is_active flips the current flag.
type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

func bindStatus(c *gin.Context) (*bool, error) {
	var req statusRequest
	if c.Request.ContentLength == 0 {
		return nil, nil
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, apperr.Validation("invalid request body")
	}
	return req.IsActive, nil
}

// pageRequest reads page, limit, sort and order. Bounds are applied by the
// store, which knows the configured page sizes.
func pageRequest(c *gin.Context) (models.PageRequest, error) {
	var req models.PageRequest
	var err error
	if req.Page, err = intQuery(c, "page"); err != nil {
		return req, err
	}
	if req.Limit, err = intQuery(c, "limit"); err != nil {
		return req, err
	}
	req.Sort = c.Query("sort")
	req.Order = strings.ToLower(c.Query("order"))
	if req.Order != "" && req.Order != models.OrderAsc && req.Order != models.OrderDesc {
		return req, apperr.Validation("order must be asc or desc")
	}
	return req, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

// activeFilter reads is_active. Listings default to active rows only;
// "all" lifts the filter.
func activeFilter(c *gin.Context) (*bool, error) {
	return boolFilter(c, "is_active", true)
}

func boolFilter(c *gin.Context, name string, fallback bool) (*bool, error) {
	raw := strings.ToLower(strings.TrimSpace(c.Query(name)))
	switch raw {
	case "":
		if !fallback {
			return nil, nil
		}
		v := true
		return &v, nil
	case "all":
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be true, false or all", name)
	}
	return &v, nil
}

// optionalBool reads a filter that is unset unless given.
func optionalBool(c *gin.Context, name string) (*bool, error) {
	return boolFilter(c, name, false)
}
