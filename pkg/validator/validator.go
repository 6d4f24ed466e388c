package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground struct validation behind the interface
// the services consume.
type Validator interface {
	Validate(interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

func New() Validator {
	return &structValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *structValidator) Validate(obj interface{}) error {
	if err := s.v.Struct(obj); err != nil {
		var errs validator.ValidationErrors
		if ok := asValidationErrors(err, &errs); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = ve
	return true
}
