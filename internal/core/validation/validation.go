// Package validation checks operation inputs against their struct tags and
// converts failures into apperror validation errors.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"goldshop/internal/core/apperror"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator.
//
// Field names in errors are the json names; decimal.Decimal fields are
// validated as float64 so numeric tags (gt, lte, min, max) apply to them.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			switch d := field.Interface().(type) {
			case decimal.Decimal:
				return d.InexactFloat64()
			case decimal.NullDecimal:
				if !d.Valid {
					return nil
				}
				return d.Decimal.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{}, decimal.NullDecimal{})

		instance = v
	})
	return instance
}

// Struct validates s. The first failing field is reported as an
// apperror validation error carrying "field" and "rule" details.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return apperror.NewValidation(e.Field()+": "+message(e)).
			WithDetail("field", e.Field()).
			WithDetail("rule", e.Tag())
	}
	return apperror.NewValidation(err.Error())
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "must be at least " + e.Param() + " characters"
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	default:
		return "invalid value"
	}
}
