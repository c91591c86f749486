package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

func TestPermissionOrdering(t *testing.T) {
	assert.True(t, PermissionReadWrite.Satisfies(PermissionRead))
	assert.True(t, PermissionReadWrite.Satisfies(PermissionReadWrite))
	assert.True(t, PermissionRead.Satisfies(PermissionRead))
	assert.False(t, PermissionRead.Satisfies(PermissionReadWrite))
	assert.False(t, PermissionNone.Satisfies(PermissionRead))
}

func TestPermissionJSON(t *testing.T) {
	var in struct {
		Permission Permission `json:"permission"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"permission":"read_write"}`), &in))
	assert.Equal(t, PermissionReadWrite, in.Permission)

	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"permission":"read_write"}`, string(out))

	err = json.Unmarshal([]byte(`{"permission":"admin"}`), &in)
	assert.Error(t, err)
}

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"defaults", PageRequest{}, PageRequest{Page: 1, Limit: 20, Order: OrderAsc}},
		{"clamps limit", PageRequest{Page: 2, Limit: 500}, PageRequest{Page: 2, Limit: 100, Order: OrderAsc}},
		{"negative page", PageRequest{Page: -3, Limit: 5}, PageRequest{Page: 1, Limit: 5, Order: OrderAsc}},
		{"desc kept", PageRequest{Page: 1, Limit: 5, Sort: " Name ", Order: "DESC"}, PageRequest{Page: 1, Limit: 5, Sort: "name", Order: OrderDesc}},
		{"bad order", PageRequest{Page: 1, Limit: 5, Order: "sideways"}, PageRequest{Page: 1, Limit: 5, Order: OrderAsc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(20, 100))
		})
	}
}

func TestPageRequestValidateBoundsOffset(t *testing.T) {
	ok := PageRequest{Page: math.MaxInt / 100, Limit: 100}
	require.NoError(t, ok.Validate())
	assert.GreaterOrEqual(t, ok.Offset(), 0)

	huge := PageRequest{Page: 92233720368547760, Limit: 100}.Normalize(20, 100)
	assert.True(t, apperr.IsCode(huge.Validate(), apperr.CodeValidationFailed))

	assert.NoError(t, PageRequest{Page: 1, Limit: 20}.Validate())
}

func TestNewPagination(t *testing.T) {
	req := PageRequest{Page: 2, Limit: 10}
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 21, Pages: 3}, NewPagination(req, 21))
	assert.Equal(t, 0, NewPagination(req, 0).Pages)
	assert.Equal(t, 10, req.Offset())
}

func TestParseLevels(t *testing.T) {
	set, err := ParseLevels("", "")
	require.NoError(t, err)
	assert.Equal(t, AllLevels(), set)

	set, err = ParseLevels("departments", "")
	require.NoError(t, err)
	assert.Equal(t, LevelSet{Departments: true}, set)

	set, err = ParseLevels("", "branches, divisions")
	require.NoError(t, err)
	assert.Equal(t, LevelSet{Departments: true}, set)

	_, err = ParseLevels("teams", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))

	_, err = ParseLevels("", "company")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
}

func TestNormalizeTextComposes(t *testing.T) {
	assert.Equal(t, "Caf\u00e9", NormalizeText("  Cafe\u0301 "))
	assert.Equal(t, "ฝ่ายบัญชี", NormalizeText("ฝ่ายบัญชี\t"))
}

func TestCompanyInputValidate(t *testing.T) {
	in := CompanyInput{CompanyCode: "ACME", NameTH: "บริษัท แอคมี จำกัด", TaxID: "0105551234567", Email: "ops@acme.test"}
	in.Normalize()
	require.NoError(t, in.Validate())
	assert.True(t, in.Company().IsActive)

	tests := []struct {
		name string
		in   CompanyInput
		msg  string
	}{
		{"bad code", CompanyInput{CompanyCode: "ACME CO", NameTH: "x", TaxID: "1"}, "company_code may contain only letters, digits, '-' and '_'"},
		{"long code", CompanyInput{CompanyCode: strings.Repeat("A", 51), NameTH: "x", TaxID: "1"}, "company_code must be at most 50 characters"},
		{"missing name", CompanyInput{CompanyCode: "ACME", TaxID: "1"}, "name_th is required"},
		{"missing tax id", CompanyInput{CompanyCode: "NOTAX", NameTH: "x"}, "tax_id is required"},
		{"long tax id", CompanyInput{CompanyCode: "ACME", NameTH: "x", TaxID: strings.Repeat("1", 21)}, "tax_id must be at most 20 characters"},
		{"bad email", CompanyInput{CompanyCode: "ACME", NameTH: "x", TaxID: "1", Email: "not-an-email"}, "email is not a valid address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := apperr.As(tt.in.Validate())
			require.True(t, ok)
			assert.Equal(t, apperr.CodeValidationFailed, e.Code)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestNameLengthCountsCharacters(t *testing.T) {
	in := BranchInput{BranchCode: "ACME-HQ", CompanyCode: "ACME", Name: strings.Repeat("ก", 255)}
	require.NoError(t, in.Validate())

	in.Name += "ก"
	assert.True(t, apperr.IsCode(in.Validate(), apperr.CodeValidationFailed))
}

func TestCompanyPatchValidate(t *testing.T) {
	empty := ""
	tax := "0105551234567"
	bad := "nope"

	require.NoError(t, (&CompanyPatch{}).Validate())
	require.NoError(t, (&CompanyPatch{TaxID: &tax, Email: &empty}).Validate())

	e, ok := apperr.As((&CompanyPatch{TaxID: &empty}).Validate())
	require.True(t, ok)
	assert.Equal(t, "tax_id must not be empty", e.Message)

	e, ok = apperr.As((&CompanyPatch{NameTH: &empty}).Validate())
	require.True(t, ok)
	assert.Equal(t, "name_th must not be empty", e.Message)

	e, ok = apperr.As((&CompanyPatch{Email: &bad}).Validate())
	require.True(t, ok)
	assert.Equal(t, "email is not a valid address", e.Message)
}

func TestDivisionValidateBranchCode(t *testing.T) {
	require.NoError(t, (&DivisionInput{DivisionCode: "D1", CompanyCode: "ACME", Name: "Ops"}).Validate())

	in := DivisionInput{DivisionCode: "D1", CompanyCode: "ACME", BranchCode: "HQ 1", Name: "Ops"}
	e, ok := apperr.As(in.Validate())
	require.True(t, ok)
	assert.Equal(t, "branch_code may contain only letters, digits, '-' and '_'", e.Message)

	var patch DivisionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"branch_code":"HQ 1"}`), &patch))
	assert.True(t, apperr.IsCode(patch.Validate(), apperr.CodeValidationFailed))

	require.NoError(t, json.Unmarshal([]byte(`{"branch_code":null}`), &patch))
	assert.NoError(t, patch.Validate())
}

func TestValidateCodeUsesFieldName(t *testing.T) {
	require.NoError(t, ValidateCode("branch_code", "ACME_HQ-1"))

	e, ok := apperr.As(ValidateCode("branch_code", ""))
	require.True(t, ok)
	assert.Equal(t, "branch_code is required", e.Message)

	e, ok = apperr.As(ValidateCode("branch_code", "-HQ"))
	require.True(t, ok)
	assert.Equal(t, "branch_code may contain only letters, digits, '-' and '_'", e.Message)
}

func TestDivisionPatchBranchCode(t *testing.T) {
	branch := "ACME-HQ"
	current := &Division{DivisionCode: "ACME-DIV1", CompanyCode: "ACME", BranchCode: &branch, Name: "Ops"}

	var absent DivisionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Operations"}`), &absent))
	next := absent.Apply(current)
	assert.Equal(t, "ACME-HQ", next.Branch())
	assert.Equal(t, "Operations", next.Name)

	var cleared DivisionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"branch_code":null}`), &cleared))
	assert.True(t, cleared.BranchCode.Clear())
	assert.Nil(t, cleared.Apply(current).BranchCode)

	var moved DivisionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"branch_code":"ACME-BKK"}`), &moved))
	assert.Equal(t, "ACME-BKK", moved.Apply(current).Branch())
	assert.Equal(t, "ACME-HQ", current.Branch())
}

func TestAPIKeyExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	assert.False(t, (&APIKey{}).Expired(now))
	assert.True(t, (&APIKey{ExpiresAt: &past}).Expired(now))
	assert.False(t, (&APIKey{ExpiresAt: &future}).Expired(now))
}

func TestAPIKeyInputValidate(t *testing.T) {
	now := time.Now()
	in := APIKeyInput{AppName: "payroll", Permission: PermissionRead}
	require.NoError(t, in.Validate(now))

	in.Permission = PermissionNone
	e, ok := apperr.As(in.Validate(now))
	require.True(t, ok)
	assert.Equal(t, "permission must be read or read_write", e.Message)

	in = APIKeyInput{Permission: PermissionRead}
	assert.True(t, apperr.IsCode(in.Validate(now), apperr.CodeValidationFailed))

	past := now.Add(-time.Hour)
	in = APIKeyInput{AppName: "payroll", Permission: PermissionRead, ExpiresAt: &past}
	assert.True(t, apperr.IsCode(in.Validate(now), apperr.CodeValidationFailed))
}
