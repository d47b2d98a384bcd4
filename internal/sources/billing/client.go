// Package billing reads clients and invoices from the time and billing
// system (Harvest API v2).
package billing

import (
	"context"
	"net/url"
	"strconv"

	"opsconsole/internal/engine"
	"opsconsole/internal/sources/httpx"
)

// DefaultBaseURL is the public API endpoint
const DefaultBaseURL = "https://api.harvestapp.com/v2"

// Client is a billing API client. Create one per run.
type Client struct {
	api *httpx.Client
}

// New returns a Client for the given account.
func New(accountID, token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	api := httpx.New("billing", baseURL, token)
	api.Header.Set("Harvest-Account-Id", accountID)
	return &Client{api: api}
}

// ListClients fetches one page of clients.
func (c *Client) ListClients(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	return c.list(ctx, "/clients", "clients", tok, pageSize)
}

// ListInvoices fetches one page of invoices.
func (c *Client) ListInvoices(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	return c.list(ctx, "/invoices", "invoices", tok, pageSize)
}

// list reads a page-numbered collection. total_pages decides the last page
// when present; otherwise a null or missing next_page does.
func (c *Client) list(ctx context.Context, path, key string, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	page := tok.Page
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(pageSize))

	var body map[string]any
	if err := c.api.Get(ctx, path, q, &body); err != nil {
		return engine.Page[map[string]any]{}, err
	}

	totalPages := engine.Int(body, "total_pages")
	var last bool
	if totalPages > 0 {
		last = page >= totalPages
	} else {
		last = engine.Lookup(body, "next_page") == nil
	}
	return engine.Page[map[string]any]{
		Items: engine.Objects(body, key),
		Last:  last,
	}, nil
}
