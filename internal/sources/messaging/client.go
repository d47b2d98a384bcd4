// Package messaging reads channels from the messaging platform (Slack Web
// API).
package messaging

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"opsconsole/internal/engine"
	"opsconsole/internal/sources/httpx"
)

// DefaultBaseURL is the public Web API endpoint
const DefaultBaseURL = "https://slack.com/api"

// Client is a messaging API client. Create one per run.
type Client struct {
	api *httpx.Client
}

// New returns a Client using a bot token.
func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{api: httpx.New("messaging", baseURL, token)}
}

// ListChannels fetches one page of public and private channels. The API
// signals the end with an empty next_cursor.
func (c *Client) ListChannels(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("types", "public_channel,private_channel")
	q.Set("exclude_archived", "false")
	if tok.Cursor != "" {
		q.Set("cursor", tok.Cursor)
	}

	var body map[string]any
	if err := c.api.Get(ctx, "/conversations.list", q, &body); err != nil {
		return engine.Page[map[string]any]{}, err
	}
	if err := checkOK(body); err != nil {
		return engine.Page[map[string]any]{}, err
	}

	next := engine.String(body, "response_metadata.next_cursor")
	return engine.Page[map[string]any]{
		Items:      engine.Objects(body, "channels"),
		NextCursor: next,
		Last:       next == "",
	}, nil
}

// checkOK turns {"ok": false, "error": "..."} bodies, which arrive with a
// 200 status, into errors.
func checkOK(body map[string]any) error {
	if ok, present := body["ok"].(bool); !present || ok {
		return nil
	}
	code := engine.String(body, "error")
	apiErr := &engine.APIError{Source: "messaging", StatusCode: http.StatusOK, Code: code, Message: code}
	if code == "ratelimited" {
		apiErr.StatusCode = http.StatusTooManyRequests
	}
	return apiErr
}
