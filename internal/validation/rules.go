// Package validation provides custom validation rules for the application.
package validation

import (
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/qbdrelay/internal/errors"
	"github.com/allisson/qbdrelay/internal/staging/domain"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// ObjectType validates that a string names a known object type.
var ObjectType = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_object_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if _, ok := domain.ParseObjectType(s); !ok {
		return validation.NewError("validation_object_type", "must be a known object type")
	}
	return nil
})

// Origin validates the origin tag of a namespace. Origins become storage key
// segments, so separators are rejected.
var Origin = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_origin", "must be a string")
	}
	for _, r := range s {
		if r == '/' || r == '_' {
			return validation.NewError("validation_origin", "must not contain '/' or '_'")
		}
	}
	return nil
})

// ConnectionID validates the connection identifier of a namespace.
var ConnectionID = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_connection_id", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	for _, r := range s {
		if r == '/' {
			return validation.NewError("validation_connection_id", "must not contain '/'")
		}
	}
	return nil
})
