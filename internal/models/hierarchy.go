// Package models defines the domain models for orgtree.
package models

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies one level of the organization hierarchy.
type Kind string

const (
	KindCompany    Kind = "company"
	KindBranch     Kind = "branch"
	KindDivision   Kind = "division"
	KindDepartment Kind = "department"
)

// Audit holds the who/when stamps carried by every entity.
type Audit struct {
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stamp sets both creation and update stamps.
func (a *Audit) Stamp(actor string, at time.Time) {
	a.CreatedBy, a.CreatedAt = actor, at
	a.UpdatedBy, a.UpdatedAt = actor, at
}

// NormalizeText trims surrounding whitespace and converts to Unicode NFC so
// that visually identical Thai and Latin names compare and search equally.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizePtr(s *string) {
	if s != nil {
		*s = NormalizeText(*s)
	}
}
