package models

// Company is the root of the organization hierarchy.
type Company struct {
	CompanyCode string `json:"company_code"`
	NameTH      string `json:"name_th"`
	NameEN      string `json:"name_en"`
	TaxID       string `json:"tax_id"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	Audit
}

// CompanyInput is the caller-supplied state of a new company.
type CompanyInput struct {
	CompanyCode string `json:"company_code" validate:"required,max=50,code"`
	NameTH      string `json:"name_th" validate:"required,max=255"`
	NameEN      string `json:"name_en" validate:"max=255"`
	TaxID       string `json:"tax_id" validate:"required,max=20"`
	Address     string `json:"address" validate:"max=1000"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"max=255,optemail"`
	IsActive    *bool  `json:"is_active"`
}

// Normalize trims and NFC-normalizes the free-text fields.
func (in *CompanyInput) Normalize() {
	in.CompanyCode = NormalizeText(in.CompanyCode)
	in.NameTH = NormalizeText(in.NameTH)
	in.NameEN = NormalizeText(in.NameEN)
	in.TaxID = NormalizeText(in.TaxID)
	in.Address = NormalizeText(in.Address)
	in.Phone = NormalizeText(in.Phone)
	in.Email = NormalizeText(in.Email)
}

// Validate checks required fields and formats.
func (in *CompanyInput) Validate() error {
	return validateStruct(in)
}

// Company builds the entity to insert.
func (in *CompanyInput) Company() *Company {
	return &Company{
		CompanyCode: in.CompanyCode,
		NameTH:      in.NameTH,
		NameEN:      in.NameEN,
		TaxID:       in.TaxID,
		Address:     in.Address,
		Phone:       in.Phone,
		Email:       in.Email,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
}

// CompanyPatch is a partial update; nil fields are left unchanged.
// The tax ID may be changed but not cleared.
type CompanyPatch struct {
	NameTH  *string `json:"name_th" validate:"omitnil,min=1,max=255"`
	NameEN  *string `json:"name_en" validate:"omitnil,max=255"`
	TaxID   *string `json:"tax_id" validate:"omitnil,min=1,max=20"`
	Address *string `json:"address" validate:"omitnil,max=1000"`
	Phone   *string `json:"phone" validate:"omitnil,max=50"`
	Email   *string `json:"email" validate:"omitnil,max=255,optemail"`
}

// Normalize trims and NFC-normalizes the set fields.
func (p *CompanyPatch) Normalize() {
	for _, f := range []*string{p.NameTH, p.NameEN, p.TaxID, p.Address, p.Phone, p.Email} {
		normalizePtr(f)
	}
}

// Validate checks the set fields.
func (p *CompanyPatch) Validate() error {
	return validateStruct(p)
}

// CompanyFilter narrows company listings.
type CompanyFilter struct {
	Search   string
	IsActive *bool
}
