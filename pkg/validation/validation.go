package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aldoetobex/mediation-crm-backend/pkg/models"
)

var v *validator.Validate

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Custom: must contain something other than whitespace
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	// Custom: case status enum
	_ = v.RegisterValidation("casestatus", func(fl validator.FieldLevel) bool {
		return models.CaseStatus(fl.Field().String()).Valid()
	})
}

// Validate checks every rule, including required fields.
// It returns map[field][]messages, or nil when the struct is valid.
func Validate(s any) (map[string][]string, error) {
	return run(s, false)
}

// ValidatePartial is Validate for PATCH bodies: absent (nil pointer) fields
// are not reported as missing, but any field that was sent must still be valid.
func ValidatePartial(s any) (map[string][]string, error) {
	return run(s, true)
}

func run(s any, partial bool) (map[string][]string, error) {
	err := v.Struct(s)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, err
	}
	var absent map[string]bool
	if partial {
		absent = nilFields(s)
	}
	out := make(map[string][]string)
	for _, e := range ve {
		if e.Tag() == "required" && absent[e.Field()] {
			continue
		}
		field := e.Field() // already mapped from json tag
		out[field] = append(out[field], message(e))
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// nilFields returns the json names of top-level pointer fields that are nil,
// i.e. keys the client did not send.
func nilFields(s any) map[string]bool {
	rv := reflect.Indirect(reflect.ValueOf(s))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]bool)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() != reflect.Ptr || !f.IsNil() {
			continue
		}
		name := strings.SplitN(rt.Field(i).Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = rt.Field(i).Name
		}
		out[name] = true
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"

	case "notblank":
		return "This field may not be blank"

	case "email":
		return "Enter a valid email address"

	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at most %s", e.Param())

	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters", e.Param())
		}
		return fmt.Sprintf("Must be at least %s", e.Param())

	case "oneof", "casestatus":
		return fmt.Sprintf("%q is not a valid choice", fmt.Sprint(e.Value()))

	case "uuid", "uuid4":
		return "Must be a valid UUID"

	case "datetime":
		return fmt.Sprintf("Date has wrong format. Use %s", e.Param())

	default:
		// Fallback to original error text if we missed a tag
		return e.Error()
	}
}

// Add appends msg to field in errs, allocating the map when needed.
func Add(errs map[string][]string, field, msg string) map[string][]string {
	if errs == nil {
		errs = make(map[string][]string)
	}
	errs[field] = append(errs[field], msg)
	return errs
}
