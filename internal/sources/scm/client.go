// Package scm reads repositories and releases from the source-control host
// through go-github.
package scm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v63/github"

	"opsconsole/internal/engine"
	"opsconsole/internal/sources/httpx"
)

const source = "scm"

// Client is a source-control API client bound to one organization.
type Client struct {
	gh  *github.Client
	org string
}

// New returns a Client. baseURL overrides the public API (GitHub
// Enterprise or tests).
func New(token, org, baseURL string) (*Client, error) {
	gh := github.NewClient(httpx.NewHTTPClient())
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid scm base URL: %w", err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh, org: org}, nil
}

// Org returns the organization the client lists.
func (c *Client) Org() string { return c.org }

// ListRepositories fetches one page of the organization's repositories.
func (c *Client) ListRepositories(ctx context.Context, tok engine.Token, pageSize int) (engine.Page[*github.Repository], error) {
	opts := &github.RepositoryListByOrgOptions{
		Type: "all",
		Sort: "full_name",
		ListOptions: github.ListOptions{
			Page:    tok.Page,
			PerPage: pageSize,
		},
	}
	repos, resp, err := c.gh.Repositories.ListByOrg(ctx, c.org, opts)
	if err != nil {
		return engine.Page[*github.Repository]{}, wrapError(err)
	}
	return engine.Page[*github.Repository]{Items: repos, Last: resp.NextPage == 0}, nil
}

// Release is the subset of a release the release action needs.
type Release struct {
	Tag         string
	Name        string
	Body        string
	URL         string
	PublishedAt *time.Time
}

// LatestRelease returns the latest published release of owner/repo, or nil
// when the repository has none.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	rel, resp, err := c.gh.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	out := &Release{
		Tag:  rel.GetTagName(),
		Name: rel.GetName(),
		Body: rel.GetBody(),
		URL:  rel.GetHTMLURL(),
	}
	if rel.PublishedAt != nil {
		t := rel.GetPublishedAt().Time
		out.PublishedAt = &t
	}
	return out, nil
}

// wrapError converts go-github errors into engine.APIError so they classify
// like every other source.
func wrapError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &engine.APIError{Source: source, StatusCode: statusOf(rateErr.Response), Code: "RATE_LIMITED", Message: rateErr.Message}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &engine.APIError{Source: source, StatusCode: statusOf(abuseErr.Response), Code: "RATE_LIMITED", Message: abuseErr.Message}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return &engine.APIError{Source: source, StatusCode: statusOf(respErr.Response), Message: respErr.Message}
	}
	return fmt.Errorf("%s request failed: %w", source, err)
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
