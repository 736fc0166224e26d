// Package validation runs go-playground/validator over service inputs and
// converts failures into cmserr validation errors.
//
// Field names in messages come from `json` tags, so clients see the same
// names they sent.  A missing required field yields the API's
// "Missing required fields: a, b, c" message, listing every required field
// of the input struct in declaration order.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/k9cms/internal/cmserr"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(jsonName)
	return val
}

// Struct validates s (a struct or pointer to struct).
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return cmserr.Internal("validate input", err)
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return cmserr.Validation("Missing required fields: %s", strings.Join(RequiredFields(s), ", "))
		}
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "oneof":
		return cmserr.Validation("Invalid %s: must be one of %s", fe.Field(), fe.Param())
	case "min", "gte":
		return cmserr.Validation("Invalid %s: must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return cmserr.Validation("Invalid %s: must be at most %s", fe.Field(), fe.Param())
	default:
		return cmserr.Validation("Invalid %s", fe.Field())
	}
}

// RequiredFields lists the json names of s's fields tagged `required`.
func RequiredFields(s any) []string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			if rule == "required" {
				out = append(out, jsonName(f))
				break
			}
		}
	}
	return out
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
