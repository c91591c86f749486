// Package apperr defines the error taxonomy shared by the storage, integrity,
// authentication and transport layers.
//
// Every error that can reach a caller carries a stable machine-readable Code.
// Lower layers construct *Error values; upper layers wrap them with fmt.Errorf
// and %w, and the HTTP layer recovers the code with CodeOf.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeAlreadyExists          Code = "ALREADY_EXISTS"
	CodeValidationFailed       Code = "VALIDATION_FAILED"
	CodeParentInactive         Code = "PARENT_INACTIVE"
	CodeCrossCompanyReference  Code = "CROSS_COMPANY_REFERENCE"
	CodeDuplicateHeadquarters  Code = "DUPLICATE_HEADQUARTERS"
	CodeHasActiveChildren      Code = "HAS_ACTIVE_CHILDREN"
	CodeMissingCredential      Code = "MISSING_CREDENTIAL"
	CodeInvalidCredential      Code = "INVALID_CREDENTIAL"
	CodeInsufficientPermission Code = "INSUFFICIENT_PERMISSION"
	CodeConstraintViolation    Code = "CONSTRAINT_VIOLATION"
	CodeBackendUnavailable     Code = "BACKEND_UNAVAILABLE"
	CodeInternal               Code = "INTERNAL"
)

// ConstraintKind classifies a backend-detected constraint violation.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// Error is the concrete error type of the taxonomy.
type Error struct {
	Code    Code
	Message string

	// Constraint and Kind are set for CodeConstraintViolation when the backend
	// reports them.
	Constraint string
	Kind       ConstraintKind

	// Count is the number of blocking dependents for CodeHasActiveChildren.
	Count int64

	// Err is the underlying cause. It is never exposed to API clients.
	Err error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code, so sentinels such
// as ErrNotFound can be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound               = &Error{Code: CodeNotFound}
	ErrAlreadyExists          = &Error{Code: CodeAlreadyExists}
	ErrValidationFailed       = &Error{Code: CodeValidationFailed}
	ErrParentInactive         = &Error{Code: CodeParentInactive}
	ErrCrossCompanyReference  = &Error{Code: CodeCrossCompanyReference}
	ErrDuplicateHeadquarters  = &Error{Code: CodeDuplicateHeadquarters}
	ErrHasActiveChildren      = &Error{Code: CodeHasActiveChildren}
	ErrMissingCredential      = &Error{Code: CodeMissingCredential}
	ErrInvalidCredential      = &Error{Code: CodeInvalidCredential}
	ErrInsufficientPermission = &Error{Code: CodeInsufficientPermission}
	ErrConstraintViolation    = &Error{Code: CodeConstraintViolation}
	ErrBackendUnavailable     = &Error{Code: CodeBackendUnavailable}
)

// NotFound reports a missing entity.
func NotFound(kind, code string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q not found", kind, code)}
}

// AlreadyExists reports a duplicate primary key.
func AlreadyExists(kind, code string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf("%s %q already exists", kind, code)}
}

// Validation reports a missing or malformed field.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// ParentInactive reports a parent that exists but is soft-deleted.
func ParentInactive(kind, code string) *Error {
	return &Error{Code: CodeParentInactive, Message: fmt.Sprintf("%s %q is inactive", kind, code)}
}

// CrossCompanyReference reports a reference that crosses company boundaries.
func CrossCompanyReference(format string, args ...any) *Error {
	return &Error{Code: CodeCrossCompanyReference, Message: fmt.Sprintf(format, args...)}
}

// DuplicateHeadquarters reports a second headquarters branch for a company.
func DuplicateHeadquarters(companyCode string) *Error {
	return &Error{
		Code:    CodeDuplicateHeadquarters,
		Message: fmt.Sprintf("company %q already has an active headquarters branch", companyCode),
	}
}

// HasActiveChildren reports that active dependents block the operation.
func HasActiveChildren(kind, code string, count int64) *Error {
	return &Error{
		Code:    CodeHasActiveChildren,
		Message: fmt.Sprintf("%s %q has %d active dependent record(s)", kind, code, count),
		Count:   count,
	}
}

// MissingCredential reports a request without an API key.
func MissingCredential() *Error {
	return &Error{Code: CodeMissingCredential, Message: "API key required"}
}

// InvalidCredential reports an API key that does not resolve to a usable record.
func InvalidCredential() *Error {
	return &Error{Code: CodeInvalidCredential, Message: "invalid API key"}
}

// InsufficientPermission reports a key whose level is below the required one.
func InsufficientPermission(required string) *Error {
	return &Error{
		Code:    CodeInsufficientPermission,
		Message: fmt.Sprintf("API key lacks %s permission", required),
	}
}

// ConstraintViolation wraps a backend-detected constraint failure.
func ConstraintViolation(kind ConstraintKind, constraint string, err error) *Error {
	msg := "constraint violation"
	if constraint != "" {
		msg = fmt.Sprintf("constraint %q violated", constraint)
	}
	return &Error{Code: CodeConstraintViolation, Message: msg, Constraint: constraint, Kind: kind, Err: err}
}

// BackendUnavailable wraps pool exhaustion, timeouts and network failures.
func BackendUnavailable(err error) *Error {
	return &Error{Code: CodeBackendUnavailable, Message: "storage backend unavailable", Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the taxonomy code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// PublicMessage returns the message safe to show to API clients.
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok || e.Code == CodeInternal {
		return "internal server error"
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// HTTPStatus maps a code to its HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConstraintViolation, CodeDuplicateHeadquarters, CodeHasActiveChildren:
		return http.StatusConflict
	case CodeValidationFailed, CodeParentInactive, CodeCrossCompanyReference:
		return http.StatusBadRequest
	case CodeMissingCredential, CodeInvalidCredential:
		return http.StatusUnauthorized
	case CodeInsufficientPermission:
		return http.StatusForbidden
	case CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
