// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
)

// StageRecordsRequest contains the record payloads to stage for one object
// type. The connection id and object type are extracted from the URL, not the
// request body.
type StageRecordsRequest struct {
	Records []map[string]any `json:"records" binding:"required"`
}

// Validate checks if the stage records request is valid.
func (r *StageRecordsRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Records,
			validation.Required,
			validation.Length(1, 0), // At least 1 record
		),
	)
}
