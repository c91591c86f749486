package models

// Department is the leaf of the hierarchy and belongs to a division.
type Department struct {
	DepartmentCode string `json:"department_code"`
	DivisionCode   string `json:"division_code"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsActive       bool   `json:"is_active"`
	Audit
}

// DepartmentInput is the caller-supplied state of a new department.
type DepartmentInput struct {
	DepartmentCode string `json:"department_code" validate:"required,max=50,code"`
	DivisionCode   string `json:"division_code" validate:"required,max=50,code"`
	Name           string `json:"name" validate:"required,max=255"`
	Description    string `json:"description" validate:"max=1000"`
	IsActive       *bool  `json:"is_active"`
}

// Normalize trims and NFC-normalizes the free-text fields.
func (in *DepartmentInput) Normalize() {
	in.DepartmentCode = NormalizeText(in.DepartmentCode)
	in.DivisionCode = NormalizeText(in.DivisionCode)
	in.Name = NormalizeText(in.Name)
	in.Description = NormalizeText(in.Description)
}

// Validate checks required fields and formats.
func (in *DepartmentInput) Validate() error {
	return validateStruct(in)
}

// Department builds the entity to insert.
func (in *DepartmentInput) Department() *Department {
	return &Department{
		DepartmentCode: in.DepartmentCode,
		DivisionCode:   in.DivisionCode,
		Name:           in.Name,
		Description:    in.Description,
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
}

// DepartmentPatch is a partial update; nil fields are left unchanged.
// Setting DivisionCode moves the department to another division.
type DepartmentPatch struct {
	DivisionCode *string `json:"division_code" validate:"omitnil,min=1,max=50,code"`
	Name         *string `json:"name" validate:"omitnil,min=1,max=255"`
	Description  *string `json:"description" validate:"omitnil,max=1000"`
}

// Normalize trims and NFC-normalizes the set fields.
func (p *DepartmentPatch) Normalize() {
	for _, f := range []*string{p.DivisionCode, p.Name, p.Description} {
		normalizePtr(f)
	}
}

// Validate checks the set fields.
func (p *DepartmentPatch) Validate() error {
	return validateStruct(p)
}

// DepartmentFilter narrows department listings. CompanyCode matches through
// the owning division.
type DepartmentFilter struct {
	Search       string
	IsActive     *bool
	DivisionCode string
	CompanyCode  string
}
