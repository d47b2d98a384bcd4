// Package transcripts reads meeting transcripts from the transcription
// service's GraphQL API (Fireflies).
package transcripts

import (
	"context"

	"opsconsole/internal/engine"
	"opsconsole/internal/sources/httpx"
)

// DefaultURL is the public GraphQL endpoint
const DefaultURL = "https://api.fireflies.ai/graphql"

// MaxPageSize is the largest limit the API accepts. Callers must not ask
// for more: a truncated page would read as the last one.
const MaxPageSize = 50

const listQuery = `query Transcripts($limit: Int, $skip: Int) {
  transcripts(limit: $limit, skip: $skip) {
    id
    title
    date
    duration
    organizer_email
    participants
    transcript_url
  }
}`

// Client is a transcription API client. Create one per run.
type Client struct {
	api *httpx.Client
}

// New returns a Client for the GraphQL endpoint at url.
func New(apiKey, url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{api: httpx.New("transcripts", url, apiKey)}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// ListTranscripts fetches one page using limit/skip. The API gives no page
// count, so a short page ends the listing.
func (c *Client) ListTranscripts(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	var body map[string]any
	err := c.api.Post(ctx, "", graphQLRequest{
		Query:     listQuery,
		Variables: map[string]any{"limit": pageSize, "skip": tok.Offset},
	}, &body)
	if err != nil {
		return engine.Page[map[string]any]{}, err
	}

	// GraphQL reports failures with a 200 status
	if errs, ok := body["errors"].([]any); ok && len(errs) > 0 {
		status, code, msg := engine.Inspect(body)
		return engine.Page[map[string]any]{}, &engine.APIError{Source: "transcripts", StatusCode: status, Code: code, Message: msg}
	}

	return engine.Page[map[string]any]{Items: engine.Objects(body, "data.transcripts")}, nil
}
