package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageRecordsRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request StageRecordsRequest
		valid   bool
	}{
		{
			name: "single record",
			request: StageRecordsRequest{
				Records: []map[string]any{{"id": "ORD-1"}},
			},
			valid: true,
		},
		{
			name: "multiple records",
			request: StageRecordsRequest{
				Records: []map[string]any{{"id": "ORD-1"}, {"id": "ORD-2"}},
			},
			valid: true,
		},
		{
			name:    "missing records",
			request: StageRecordsRequest{},
			valid:   false,
		},
		{
			name: "empty records",
			request: StageRecordsRequest{
				Records: []map[string]any{},
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
