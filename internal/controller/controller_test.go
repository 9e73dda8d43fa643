package controller

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sharetube/party/internal/auth"
	"github.com/sharetube/party/internal/repository/party/inmemory"
	repo "github.com/sharetube/party/internal/repository/party"
	"github.com/sharetube/party/internal/service/party"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	tokens *auth.JWTResolver
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()

	tokens := auth.NewJWTResolver("test-secret", "party-test")
	store := inmemory.NewRepo(repo.DefaultPolicy(), slog.Default())
	service := party.NewService(store, slog.Default(), &party.Config{ChatMaxLength: 500, NameMaxLength: 32})
	c := NewController(service, tokens, slog.Default(), cfg)

	srv := httptest.NewServer(c.Mux())
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, tokens: tokens}
}

func (s *testServer) token(userID string) string {
	s.t.Helper()
	token, err := s.tokens.IssueToken(userID, "user "+userID, time.Hour)
	require.NoError(s.t, err)
	return token
}

// do sends body as-is when it is a string and JSON-encodes it otherwise.
func (s *testServer) do(method, path, userID string, body any) (int, map[string]json.RawMessage) {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		js, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(js)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var envelope map[string]json.RawMessage
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&envelope))

	return resp.StatusCode, envelope
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (s *testServer) createParty(userID string) party.Party {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/parties", userID, map[string]any{
		"content_id":   "M1",
		"content_kind": "movie",
	})
	require.Equal(s.t, http.StatusCreated, status)
	return decode[party.Party](s.t, body["data"])
}

func TestPartyFlow(t *testing.T) {
	s := newTestServer(t, &Config{})

	p := s.createParty("A")
	assert.Len(t, p.Code, 6)
	assert.Equal(t, "A", p.HostID)
	require.Len(t, p.Members, 1)
	assert.Equal(t, "user A", p.Members[0].Name)

	status, body := s.do(http.MethodPost, "/api/parties/"+p.Code+"/join", "B", nil)
	require.Equal(t, http.StatusOK, status)
	joined := decode[party.State](t, body["data"])
	assert.Len(t, joined.Party.Members, 2)

	status, body = s.do(http.MethodPut, "/api/parties/"+p.Code+"/playback", "A", map[string]any{
		"position":   120,
		"is_playing": true,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 120.0, decode[party.Playback](t, body["data"]).Position)

	status, body = s.do(http.MethodGet, "/api/parties/"+p.Code, "B", nil)
	require.Equal(t, http.StatusOK, status)
	state := decode[party.State](t, body["data"])
	assert.Equal(t, 120.0, state.Party.Playback.Position)
	assert.True(t, state.Party.Playback.IsPlaying)

	status, body = s.do(http.MethodPut, "/api/parties/"+p.Code+"/playback", "B", map[string]any{
		"position":   5,
		"is_playing": false,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, codeForbidden, decode[errorBody](t, body["error"]).Code)

	status, _ = s.do(http.MethodPost, "/api/parties/"+p.Code+"/chat", "B", map[string]any{
		"text": strings.Repeat("x", 501),
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(http.MethodPost, "/api/parties/"+p.Code+"/chat", "B", map[string]any{"text": " hi "})
	require.Equal(t, http.StatusCreated, status)
	msg := decode[party.ChatMessage](t, body["data"])
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "user B", msg.AuthorName)

	since := url.QueryEscape(msg.CreatedAt.Format(time.RFC3339Nano))
	status, body = s.do(http.MethodGet, "/api/parties/"+p.Code+"/chat?since="+since, "A", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[party.Chat](t, body["data"]).Messages)

	status, body = s.do(http.MethodGet, "/api/parties/"+p.Code+"/chat", "A", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[party.Chat](t, body["data"]).Messages, 1)

	status, body = s.do(http.MethodPost, "/api/parties/"+p.Code+"/leave", "A", nil)
	require.Equal(t, http.StatusOK, status)
	left := decode[party.LeaveResponse](t, body["data"])
	assert.True(t, left.Left)
	assert.False(t, left.Removed)
	require.NotNil(t, left.NewHostID)
	assert.Equal(t, "B", *left.NewHostID)

	status, body = s.do(http.MethodPost, "/api/parties/"+p.Code+"/leave", "B", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, decode[party.LeaveResponse](t, body["data"]).Removed)

	status, body = s.do(http.MethodGet, "/api/parties/"+p.Code, "B", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, codeNotFound, decode[errorBody](t, body["error"]).Code)
}

func TestUnauthenticated(t *testing.T) {
	s := newTestServer(t, &Config{})

	status, body := s.do(http.MethodPost, "/api/parties", "", map[string]any{
		"content_id":   "M1",
		"content_kind": "movie",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, codeUnauthenticated, decode[errorBody](t, body["error"]).Code)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/parties/ABCDEF", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, &Config{})

	status, body := s.do(http.MethodPost, "/api/parties", "A", map[string]any{
		"content_id":   "M1",
		"content_kind": "documentary",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body["errors"]), "content_kind")

	status, _ = s.do(http.MethodPost, "/api/parties", "A", `{"content_id":`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = s.do(http.MethodPost, "/api/parties", "A", `{"content_id":"M1","content_kind":"movie","extra":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	p := s.createParty("A")

	status, body = s.do(http.MethodPut, "/api/parties/"+p.Code+"/playback", "A", map[string]any{"position": -1, "is_playing": true})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body["errors"]), "position")

	status, _ = s.do(http.MethodPut, "/api/parties/"+p.Code+"/playback", "A", map[string]any{"position": 10})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(http.MethodGet, "/api/parties/"+p.Code+"?since=yesterday", "A", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, codeValidation, decode[errorBody](t, body["error"]).Code)
}

func TestCodeIsCaseInsensitive(t *testing.T) {
	s := newTestServer(t, &Config{})
	p := s.createParty("A")

	status, body := s.do(http.MethodPost, "/api/parties/"+strings.ToLower(p.Code)+"/join", "B", map[string]any{
		"display_name": "Bob",
	})
	require.Equal(t, http.StatusOK, status)
	state := decode[party.State](t, body["data"])
	assert.Equal(t, p.Code, state.Party.Code)
	require.Len(t, state.Party.Members, 2)
	assert.Equal(t, "Bob", state.Party.Members[1].Name)
}

func TestJoinWithoutNameClaimOrBody(t *testing.T) {
	s := newTestServer(t, &Config{})
	p := s.createParty("A")

	token, err := s.tokens.IssueToken("B", "", time.Hour)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/parties/"+p.Code+"/join", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	state := decode[party.State](t, body["data"])
	require.Len(t, state.Party.Members, 2)
	assert.Equal(t, "B", state.Party.Members[1].ID)
	assert.Equal(t, "B", state.Party.Members[1].Name)
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, &Config{})
	p := s.createParty("A")

	status, body := s.do(http.MethodGet, "/api/parties/"+p.Code+"/preview", "C", nil)
	require.Equal(t, http.StatusOK, status)
	preview := decode[party.Preview](t, body["data"])
	assert.Equal(t, "user A", preview.HostName)
	assert.Equal(t, 1, preview.MemberCount)

	status, _ = s.do(http.MethodGet, "/api/parties/"+p.Code, "C", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &Config{RateLimit: 2})

	status, _ := s.do(http.MethodGet, "/api/parties/ABCDEF", "A", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(http.MethodGet, "/api/parties/ABCDEF", "A", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := s.do(http.MethodGet, "/api/parties/ABCDEF", "A", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, codeRateLimited, decode[errorBody](t, body["error"]).Code)

	status, _ = s.do(http.MethodGet, "/api/parties/ABCDEF", "B", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, &Config{})

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-1")

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-1", resp.Header.Get("X-Request-ID"))
}
