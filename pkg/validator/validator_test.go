package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createRequest struct {
	ContentID   string `json:"content_id" validate:"required,max=64"`
	ContentKind string `json:"content_kind" validate:"required,oneof=movie series"`
	Name        string `json:"display_name" validate:"required,min=1,max=32"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	_, ok := v.Validate(createRequest{ContentID: "M1", ContentKind: "movie", Name: "alice"})
	assert.True(t, ok)

	errs, ok := v.Validate(createRequest{ContentKind: "anime", Name: "alice"})
	require.False(t, ok)
	require.Len(t, errs, 2)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "REQUIRED", byField["content_id"].Code)
	assert.Equal(t, "content_id is required", byField["content_id"].Message)
	assert.Equal(t, "ONEOF", byField["content_kind"].Code)
}
