package models

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// validate is shared by every input and patch type; it is safe for
// concurrent use and caches struct metadata after first use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "code", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "optemail", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || v.Var(s, "email") == nil
	})
	mustRegister(v, "permission", func(fl validator.FieldLevel) bool {
		return Permission(fl.Field().Int()).Valid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// ValidateCode checks a caller-supplied primary or parent key.
func ValidateCode(field, code string) error {
	return translate(validate.Var(code, "required,max=50,code"), field)
}

func validateStruct(s any) error {
	return translate(validate.Struct(s), "")
}

// translate turns the first validator failure into a VALIDATION_FAILED error.
func translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("%v", err)
	}
	fe := verrs[0]
	if field == "" {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return apperr.Validation("%s is required", field)
	case "min":
		return apperr.Validation("%s must not be empty", field)
	case "max":
		return apperr.Validation("%s must be at most %s characters", field, fe.Param())
	case "code":
		return apperr.Validation("%s may contain only letters, digits, '-' and '_'", field)
	case "email", "optemail":
		return apperr.Validation("%s is not a valid address", field)
	case "permission":
		return apperr.Validation("%s must be read or read_write", field)
	default:
		return apperr.Validation("%s is invalid", field)
	}
}
