package rest

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}

	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, ReadJSON(r, &dst))
	assert.Equal(t, "hi", dst.Text)

	r = httptest.NewRequest("POST", "/", strings.NewReader(""))
	assert.ErrorIs(t, ReadJSON(r, &dst), ErrEmptyBody)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"text":"hi","extra":1}`))
	assert.Error(t, ReadJSON(r, &dst))

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"text":"a"}{"text":"b"}`))
	assert.Error(t, ReadJSON(r, &dst))
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, 201, Envelope{"data": map[string]int{"n": 1}}))

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"n":1}}`, w.Body.String())
}
