// Package partyclient is a typed client for the party HTTP API.
package partyclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New returns a client for the server at baseURL that authenticates with
// the bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dst any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		js, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(js)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}

	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return apiErr
	}

	switch {
	case envelope.Error != nil:
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	case len(envelope.Errors) > 0:
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Field+": "+e.Message)
		}
		apiErr.Message = strings.Join(msgs, "; ")
	}

	return apiErr
}

func partyPath(code string, parts ...string) string {
	return "/api/parties/" + url.PathEscape(code) + strings.Join(parts, "")
}

func sinceQuery(since *time.Time) url.Values {
	if since == nil {
		return nil
	}

	return url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}
}

func (c *Client) Create(ctx context.Context, params CreateParams) (Party, error) {
	var p Party
	err := c.do(ctx, http.MethodPost, "/api/parties", nil, params, &p)
	return p, err
}

func (c *Client) Preview(ctx context.Context, code string) (Preview, error) {
	var p Preview
	err := c.do(ctx, http.MethodGet, partyPath(code, "/preview"), nil, nil, &p)
	return p, err
}

// Join is idempotent; a member joining again gets the current state back.
func (c *Client) Join(ctx context.Context, code string, params JoinParams) (State, error) {
	var s State
	err := c.do(ctx, http.MethodPost, partyPath(code, "/join"), nil, params, &s)
	return s, err
}

// State polls the party. Messages holds chat newer than since, or the whole
// log when since is nil.
func (c *Client) State(ctx context.Context, code string, since *time.Time) (State, error) {
	var s State
	err := c.do(ctx, http.MethodGet, partyPath(code), sinceQuery(since), nil, &s)
	return s, err
}

func (c *Client) Leave(ctx context.Context, code string) (LeaveResult, error) {
	var res LeaveResult
	err := c.do(ctx, http.MethodPost, partyPath(code, "/leave"), nil, nil, &res)
	return res, err
}

func (c *Client) SyncPlayback(ctx context.Context, code string, position float64, isPlaying bool) (Playback, error) {
	var pb Playback
	err := c.do(ctx, http.MethodPut, partyPath(code, "/playback"), nil, map[string]any{
		"position":   position,
		"is_playing": isPlaying,
	}, &pb)
	return pb, err
}

func (c *Client) PostChat(ctx context.Context, code, text string) (ChatMessage, error) {
	var msg ChatMessage
	err := c.do(ctx, http.MethodPost, partyPath(code, "/chat"), nil, map[string]string{"text": text}, &msg)
	return msg, err
}

func (c *Client) Chat(ctx context.Context, code string, since *time.Time) (Chat, error) {
	var chat Chat
	err := c.do(ctx, http.MethodGet, partyPath(code, "/chat"), sinceQuery(since), nil, &chat)
	return chat, err
}
