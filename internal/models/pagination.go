package models

import (
	"math"
	"strings"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// Sort orders.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// PageRequest is an offset/limit page selection with an optional sort key.
type PageRequest struct {
	Page  int
	Limit int
	Sort  string
	Order string
}

// Normalize clamps the request to sane bounds. A non-positive limit becomes
// defaultLimit; anything above maxLimit is clamped to maxLimit.
func (p PageRequest) Normalize(defaultLimit, maxLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	p.Sort = strings.ToLower(strings.TrimSpace(p.Sort))
	p.Order = strings.ToLower(strings.TrimSpace(p.Order))
	if p.Order != OrderDesc {
		p.Order = OrderAsc
	}
	return p
}

// Validate rejects a normalized request whose offset would not fit in an int.
func (p PageRequest) Validate() error {
	if p.Limit > 0 && p.Page > math.MaxInt/p.Limit {
		return apperr.Validation("page must be at most %d for limit %d", math.MaxInt/p.Limit, p.Limit)
	}
	return nil
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes the page returned to the caller.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination derives page metadata from a normalized request.
func NewPagination(req PageRequest, total int64) Pagination {
	pages := 0
	if req.Limit > 0 {
		pages = int((total + int64(req.Limit) - 1) / int64(req.Limit))
	}
	return Pagination{Page: req.Page, Limit: req.Limit, Total: total, Pages: pages}
}

// Page is one page of list results.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}
