package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	URL       string   `json:"originalUrl" validate:"required,url"`
	Title     string   `json:"title" validate:"required,max=200"`
	ShortCode string   `json:"shortCode,omitempty" validate:"omitempty,alphanum,min=4,max=10"`
	Status    string   `json:"status,omitempty" validate:"omitempty,oneof=active inactive expired"`
	Tags      []string `json:"tags" validate:"max=20"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		req        createRequest
		wantFields map[string]string
	}{
		{
			name: "valid",
			req:  createRequest{URL: "https://example.com", Title: "Docs", ShortCode: "AbC123"},
		},
		{
			name: "missing fields",
			req:  createRequest{},
			wantFields: map[string]string{
				"originalUrl": "is required",
				"title":       "is required",
			},
		},
		{
			name: "bad url and code",
			req:  createRequest{URL: "nope", Title: "Docs", ShortCode: "ab-c"},
			wantFields: map[string]string{
				"originalUrl": "must be a valid URL",
				"shortCode":   "must contain only letters and digits",
			},
		},
		{
			name: "code too long",
			req:  createRequest{URL: "https://example.com", Title: "Docs", ShortCode: "abcdefghijk"},
			wantFields: map[string]string{
				"shortCode": "must be at most 10 characters",
			},
		},
		{
			name: "unknown status",
			req:  createRequest{URL: "https://example.com", Title: "Docs", Status: "archived"},
			wantFields: map[string]string{
				"status": "must be one of: active inactive expired",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)

			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)

			var fields Errors
			require.True(t, errors.As(err, &fields))
			assert.Equal(t, Errors(tt.wantFields), fields)
		})
	}
}

func TestErrors_ErrorIsSorted(t *testing.T) {
	err := Errors{"title": "is required", "originalUrl": "is required"}

	assert.Equal(t, "validation failed: originalUrl is required; title is required", err.Error())
}
