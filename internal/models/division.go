package models

import "encoding/json"

// Division belongs to a company and optionally to one of that company's branches.
type Division struct {
	DivisionCode string  `json:"division_code"`
	CompanyCode  string  `json:"company_code"`
	BranchCode   *string `json:"branch_code"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	IsActive     bool    `json:"is_active"`
	Audit
}

// Branch returns the branch code or "" when the division is company-level.
func (d *Division) Branch() string {
	if d.BranchCode == nil {
		return ""
	}
	return *d.BranchCode
}

// DivisionInput is the caller-supplied state of a new division.
type DivisionInput struct {
	DivisionCode string `json:"division_code" validate:"required,max=50,code"`
	CompanyCode  string `json:"company_code" validate:"required,max=50,code"`
	BranchCode   string `json:"branch_code" validate:"omitempty,max=50,code"`
	Name         string `json:"name" validate:"required,max=255"`
	Description  string `json:"description" validate:"max=1000"`
	IsActive     *bool  `json:"is_active"`
}

// Normalize trims and NFC-normalizes the free-text fields.
func (in *DivisionInput) Normalize() {
	in.DivisionCode = NormalizeText(in.DivisionCode)
	in.CompanyCode = NormalizeText(in.CompanyCode)
	in.BranchCode = NormalizeText(in.BranchCode)
	in.Name = NormalizeText(in.Name)
	in.Description = NormalizeText(in.Description)
}

// Validate checks required fields and formats.
func (in *DivisionInput) Validate() error {
	return validateStruct(in)
}

// Division builds the entity to insert.
func (in *DivisionInput) Division() *Division {
	d := &Division{
		DivisionCode: in.DivisionCode,
		CompanyCode:  in.CompanyCode,
		Name:         in.Name,
		Description:  in.Description,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if in.BranchCode != "" {
		branch := in.BranchCode
		d.BranchCode = &branch
	}
	return d
}

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON is only invoked when the field is present.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MarshalJSON renders the value or null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Clear reports whether the field was explicitly set to null or "".
func (o OptionalString) Clear() bool {
	return o.Set && (o.Value == nil || *o.Value == "")
}

// DivisionPatch is a partial update; nil fields are left unchanged.
// BranchCode set to null detaches the division from its branch.
type DivisionPatch struct {
	CompanyCode *string        `json:"company_code" validate:"omitnil,min=1,max=50,code"`
	BranchCode  OptionalString `json:"branch_code" validate:"-"`
	Name        *string        `json:"name" validate:"omitnil,min=1,max=255"`
	Description *string        `json:"description" validate:"omitnil,max=1000"`
}

// Normalize trims and NFC-normalizes the set fields.
func (p *DivisionPatch) Normalize() {
	for _, f := range []*string{p.CompanyCode, p.BranchCode.Value, p.Name, p.Description} {
		normalizePtr(f)
	}
}

// Validate checks the set fields. A branch code that is present must be a
// valid code unless it detaches the division.
func (p *DivisionPatch) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if p.BranchCode.Set && !p.BranchCode.Clear() {
		return ValidateCode("branch_code", *p.BranchCode.Value)
	}
	return nil
}

// Apply returns a copy of d with the patch applied.
func (p *DivisionPatch) Apply(d *Division) *Division {
	next := *d
	if p.CompanyCode != nil {
		next.CompanyCode = *p.CompanyCode
	}
	if p.BranchCode.Set {
		if p.BranchCode.Clear() {
			next.BranchCode = nil
		} else {
			branch := *p.BranchCode.Value
			next.BranchCode = &branch
		}
	}
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	return &next
}

// DivisionFilter narrows division listings.
type DivisionFilter struct {
	Search      string
	IsActive    *bool
	CompanyCode string
	BranchCode  string
	Unassigned  bool
}
