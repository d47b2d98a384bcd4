// Package crm talks to the CRM (HubSpot CRM v3 objects API): it reads
// companies and creates deals and notes.
package crm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"opsconsole/internal/engine"
	"opsconsole/internal/sources/httpx"
)

// DefaultBaseURL is the public API endpoint
const DefaultBaseURL = "https://api.hubapi.com"

// Association type ids defined by the CRM
const (
	assocDealToCompany = 5
	assocNoteToCompany = 190
)

var companyProperties = []string{"name", "domain", "industry", "hubspot_owner_id"}

// Client is a CRM API client. Create one per run.
type Client struct {
	api *httpx.Client
}

// New returns a Client using a private app token.
func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{api: httpx.New("crm", baseURL, token)}
}

// ListCompanies fetches one page of companies. The CRM uses an opaque
// "after" cursor; its absence marks the last page.
func (c *Client) ListCompanies(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[map[string]any], error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("properties", strings.Join(companyProperties, ","))
	q.Set("archived", "false")
	if tok.Cursor != "" {
		q.Set("after", tok.Cursor)
	}

	var body map[string]any
	if err := c.api.Get(ctx, "/crm/v3/objects/companies", q, &body); err != nil {
		return engine.Page[map[string]any]{}, err
	}

	next := engine.String(body, "paging.next.after")
	return engine.Page[map[string]any]{
		Items:      engine.Objects(body, "results"),
		NextCursor: next,
		Last:       next == "",
	}, nil
}

// Deal is the payload for a new deal.
type Deal struct {
	Name      string
	Amount    float64
	Currency  string
	Stage     string
	CloseDate *time.Time
	// CompanyID is the CRM's id of the company to associate
	CompanyID string
}

// Note is the payload for a new note.
type Note struct {
	Body      string
	Timestamp time.Time
	CompanyID string
}

type association struct {
	To    map[string]string `json:"to"`
	Types []associationType `json:"types"`
}

type associationType struct {
	Category string `json:"associationCategory"`
	TypeID   int    `json:"associationTypeId"`
}

type createRequest struct {
	Properties   map[string]string `json:"properties"`
	Associations []association     `json:"associations,omitempty"`
}

type createResponse struct {
	ID string `json:"id"`
}

func associate(companyID string, typeID int) []association {
	if companyID == "" {
		return nil
	}
	return []association{{
		To:    map[string]string{"id": companyID},
		Types: []associationType{{Category: "HUBSPOT_DEFINED", TypeID: typeID}},
	}}
}

// CreateDeal creates a deal associated with the company and returns its id.
func (c *Client) CreateDeal(ctx context.Context, d Deal) (string, error) {
	props := map[string]string{
		"dealname":  d.Name,
		"amount":    strconv.FormatFloat(d.Amount, 'f', 2, 64),
		"dealstage": d.Stage,
		"pipeline":  "default",
	}
	if d.Currency != "" {
		props["deal_currency_code"] = d.Currency
	}
	if d.CloseDate != nil {
		props["closedate"] = d.CloseDate.UTC().Format(time.RFC3339)
	}
	return c.create(ctx, "/crm/v3/objects/deals", createRequest{
		Properties:   props,
		Associations: associate(d.CompanyID, assocDealToCompany),
	})
}

// CreateNote attaches a note to the company and returns its id.
func (c *Client) CreateNote(ctx context.Context, n Note) (string, error) {
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return c.create(ctx, "/crm/v3/objects/notes", createRequest{
		Properties: map[string]string{
			"hs_note_body": n.Body,
			"hs_timestamp": ts.UTC().Format(time.RFC3339),
		},
		Associations: associate(n.CompanyID, assocNoteToCompany),
	})
}

func (c *Client) create(ctx context.Context, path string, req createRequest) (string, error) {
	var resp createResponse
	if err := c.api.Post(ctx, path, req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("crm returned no id for %s", path)
	}
	return resp.ID, nil
}
