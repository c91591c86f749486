package models

// Branch is a physical location of a company. At most one active branch per
// company carries the headquarters flag.
type Branch struct {
	BranchCode     string `json:"branch_code"`
	CompanyCode    string `json:"company_code"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	IsHeadquarters bool   `json:"is_headquarters"`
	IsActive       bool   `json:"is_active"`
	Audit
}

// BranchInput is the caller-supplied state of a new branch.
type BranchInput struct {
	BranchCode     string `json:"branch_code" validate:"required,max=50,code"`
	CompanyCode    string `json:"company_code" validate:"required,max=50,code"`
	Name           string `json:"name" validate:"required,max=255"`
	Address        string `json:"address" validate:"max=1000"`
	Phone          string `json:"phone" validate:"max=50"`
	IsHeadquarters bool   `json:"is_headquarters"`
	IsActive       *bool  `json:"is_active"`
}

// Normalize trims and NFC-normalizes the free-text fields.
func (in *BranchInput) Normalize() {
	in.BranchCode = NormalizeText(in.BranchCode)
	in.CompanyCode = NormalizeText(in.CompanyCode)
	in.Name = NormalizeText(in.Name)
	in.Address = NormalizeText(in.Address)
	in.Phone = NormalizeText(in.Phone)
}

// Validate checks required fields and formats.
func (in *BranchInput) Validate() error {
	return validateStruct(in)
}

// Branch builds the entity to insert.
func (in *BranchInput) Branch() *Branch {
	return &Branch{
		BranchCode:     in.BranchCode,
		CompanyCode:    in.CompanyCode,
		Name:           in.Name,
		Address:        in.Address,
		Phone:          in.Phone,
		IsHeadquarters: in.IsHeadquarters,
		IsActive:       in.IsActive == nil || *in.IsActive,
	}
}

// BranchPatch is a partial update; nil fields are left unchanged.
// Setting CompanyCode moves the branch to another company.
type BranchPatch struct {
	CompanyCode    *string `json:"company_code" validate:"omitnil,min=1,max=50,code"`
	Name           *string `json:"name" validate:"omitnil,min=1,max=255"`
	Address        *string `json:"address" validate:"omitnil,max=1000"`
	Phone          *string `json:"phone" validate:"omitnil,max=50"`
	IsHeadquarters *bool   `json:"is_headquarters"`
}

// Normalize trims and NFC-normalizes the set fields.
func (p *BranchPatch) Normalize() {
	for _, f := range []*string{p.CompanyCode, p.Name, p.Address, p.Phone} {
		normalizePtr(f)
	}
}

// Validate checks the set fields.
func (p *BranchPatch) Validate() error {
	return validateStruct(p)
}

// Apply returns a copy of b with the patch applied.
func (p *BranchPatch) Apply(b *Branch) *Branch {
	next := *b
	if p.CompanyCode != nil {
		next.CompanyCode = *p.CompanyCode
	}
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Address != nil {
		next.Address = *p.Address
	}
	if p.Phone != nil {
		next.Phone = *p.Phone
	}
	if p.IsHeadquarters != nil {
		next.IsHeadquarters = *p.IsHeadquarters
	}
	return &next
}

// BranchFilter narrows branch listings.
type BranchFilter struct {
	Search         string
	IsActive       *bool
	CompanyCode    string
	IsHeadquarters *bool
}
