package httputil

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks decoded request bodies against their `validate` tags.
// Field names in error details use the json tag.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate runs struct validation on i.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Bind decodes the body into dst and validates it. It returns false after
// writing a 400 response if either step fails.
func (v *Validator) Bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !Decode(w, r, dst) {
		return false
	}
	err := v.Validate(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		BadRequest(w, err.Error())
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation failed",
		Code:    "validation_failed",
		Details: fields,
	})
	return false
}
