package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"overlay-router/internal/common/errors"
)

// FieldError is a single failed rule
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

// Result is the structured outcome of a validation run
type Result struct {
	Valid  bool
	Errors []FieldError
}

// Validator wraps go-playground/validator with the overlay's custom rules
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the custom tags registered.
// Field names in errors follow the json tag.
func New() *Validator {
	v := validator.New()
	registerOverlayValidators(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v}
}

// Struct validates s by its validate tags
func (v *Validator) Struct(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return v.format(err)
	}
	return nil
}

// Var validates a single value against tag
func (v *Validator) Var(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return v.format(err)
	}
	return nil
}

// StructResult validates s and returns every failed rule
func (v *Validator) StructResult(s interface{}) *Result {
	err := v.validate.Struct(s)
	if err == nil {
		return &Result{Valid: true}
	}
	return &Result{Valid: false, Errors: extract(err)}
}

func (v *Validator) format(err error) error {
	fieldErrors := extract(err)
	if len(fieldErrors) == 1 {
		return errors.ValidationError(fieldErrors[0].Message)
	}

	messages := make([]string, len(fieldErrors))
	for i, e := range fieldErrors {
		messages[i] = e.Message
	}
	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func extract(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: message(fe),
			Param:   fe.Param(),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("field '%s' must be a valid URL", field)
	case "identifier":
		return fmt.Sprintf("field '%s' must be a non-empty identifier without whitespace", field)
	case "positive_duration":
		return fmt.Sprintf("field '%s' must be a positive duration", field)
	case "unique":
		return fmt.Sprintf("field '%s' must not contain duplicates", field)
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, fe.Tag())
	}
}

func registerOverlayValidators(v *validator.Validate) {
	// member, community and protocol ids travel in headers and lock keys
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return id != "" && strings.IndexFunc(id, unicode.IsSpace) < 0
	})

	_ = v.RegisterValidation("positive_duration", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(time.Duration)
		return ok && d > 0
	})
}
