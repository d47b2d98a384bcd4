// Package httpx is the JSON-over-HTTP plumbing shared by the REST and
// GraphQL sources.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"opsconsole/internal/engine"
)

// DefaultTimeout bounds every external call. The engine itself enforces no
// timeout.
const DefaultTimeout = 30 * time.Second

const userAgent = "opsconsole"

// NewHTTPClient returns an http.Client with pooled connections.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Client issues JSON requests against one API.
type Client struct {
	Source  string
	BaseURL string
	Header  http.Header
	HTTP    *http.Client
}

// New returns a Client authenticating with a bearer token.
func New(source, baseURL, token string) *Client {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return &Client{
		Source:  source,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Header:  h,
		HTTP:    NewHTTPClient(),
	}
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do performs the request. Non-2xx responses are returned as
// *engine.APIError. Numbers decode as json.Number.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", c.Source, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", c.Source, err)
	}
	for k, vals := range c.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.Source, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", c.Source, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseError(c.Source, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return Decode(data, out)
}

// Decode unmarshals JSON keeping numbers as json.Number.
func Decode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}

// ParseError builds an APIError from an error response body.
func ParseError(source string, status int, body []byte) *engine.APIError {
	apiErr := &engine.APIError{Source: source, StatusCode: status}

	var payload map[string]any
	if err := Decode(body, &payload); err == nil {
		_, code, msg := engine.Inspect(payload)
		apiErr.Code = code
		apiErr.Message = msg
	} else if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		apiErr.Message = text
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
