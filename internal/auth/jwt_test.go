package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	j := NewJWTResolver("secret", "watchparty")
	token, err := j.IssueToken("user-1", "alice", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	id, err := j.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-1", Name: "alice"}, id)

	r = httptest.NewRequest("GET", "/?token="+token, nil)
	id, err = j.Resolve(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
}

func TestResolveRejects(t *testing.T) {
	j := NewJWTResolver("secret", "watchparty")

	_, err := j.Resolve(httptest.NewRequest("GET", "/", nil))
	assert.ErrorIs(t, err, ErrMissingToken)

	other, err := NewJWTResolver("other-secret", "watchparty").IssueToken("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = j.ParseToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := j.IssueToken("user-1", "", -time.Minute)
	require.NoError(t, err)
	_, err = j.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewJWTResolver("secret", "someone-else").IssueToken("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = j.ParseToken(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
