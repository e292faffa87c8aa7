// Package codec encodes staged record payloads to and from the storage
// format. Files always hold a JSON array so one file can carry a batch, and
// nested maps and arrays survive the round trip unchanged.
package codec

import (
	"encoding/json"

	apperrors "github.com/allisson/qbdrelay/internal/errors"
)

// Encode serializes a batch of record payloads into the storage format.
func Encode(payloads []map[string]any) ([]byte, error) {
	if payloads == nil {
		payloads = []map[string]any{}
	}
	data, err := json.Marshal(payloads)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode payloads")
	}
	return data, nil
}

// EncodeOne serializes a single payload as a one-element batch.
func EncodeOne(payload map[string]any) ([]byte, error) {
	return Encode([]map[string]any{payload})
}

// Decode deserializes a storage file back into its payloads. Files written by
// older tooling may hold a single object instead of an array; both forms are
// accepted.
func Decode(data []byte) ([]map[string]any, error) {
	var payloads []map[string]any
	if err := json.Unmarshal(data, &payloads); err == nil {
		return payloads, nil
	}

	var single map[string]any
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed record file")
	}
	return []map[string]any{single}, nil
}

// DecodeOne deserializes a storage file expected to hold exactly one payload.
// Extra payloads are ignored; an empty file yields ErrNotFound semantics at
// the caller, so nil is returned here.
func DecodeOne(data []byte) (map[string]any, error) {
	payloads, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, nil
	}
	return payloads[0], nil
}
