package services

import (
	"errors"
	"fmt"

	pkgerrors "marketplace/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateStruct turns validator failures into a VALIDATION_ERROR keyed by field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request")
	}
	fields := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Namespace()] = fmt.Sprintf("failed on the '%s' tag", e.Tag())
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(fields)
}
