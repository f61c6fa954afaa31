package core

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError is the client-side rejection of a form before it is
// submitted to the Entity Store.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "Please fill in the required fields: " + strings.Join(e.Fields, ", ")
}

// Normalizer is implemented by inputs that need canonicalization after the
// required-field checks pass.
type Normalizer interface {
	Normalize() error
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate runs the struct tag rules on v and then v.Normalize when v
// implements Normalizer. Failures are returned as *ValidationError.
func Validate(v any) error {
	if err := validatorInstance().Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		ve := &ValidationError{}
		missing := false
		for _, fe := range verrs {
			ve.Fields = append(ve.Fields, fe.Field())
			if fe.Tag() == "required" {
				missing = true
			} else if ve.Reason == "" {
				ve.Reason = fe.Field() + " is invalid"
			}
		}
		if missing {
			ve.Reason = ""
		}
		return ve
	}
	if n, ok := v.(Normalizer); ok {
		return n.Normalize()
	}
	return nil
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
