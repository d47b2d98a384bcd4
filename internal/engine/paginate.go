package engine

import (
	"context"
	"fmt"
)

// Paging defaults
const (
	DefaultPageSize = 100
	DefaultMaxItems = 10000
)

// Token identifies the page to fetch. Sources read whichever field matches
// their pagination idiom: Page for page-number APIs, Offset for skip/limit,
// Cursor for opaque cursors.
type Token struct {
	Page   int
	Offset int
	Cursor string
}

// Page is one batch returned by a source.
type Page[T any] struct {
	Items []T
	// NextCursor is set by cursor-based sources
	NextCursor string
	// Last is set when the server reports there are no further pages
	Last bool
}

// FetchFunc retrieves the page identified by tok.
type FetchFunc[T any] func(ctx context.Context, tok Token, pageSize int) (Page[T], error)

// FirstPageError reports that the very first page could not be fetched.
type FirstPageError struct {
	Err error
}

func (e *FirstPageError) Error() string {
	return fmt.Sprintf("failed to fetch first page: %v", e.Err)
}

func (e *FirstPageError) Unwrap() error { return e.Err }

// PartialError reports a failure after at least one page was fetched.
type PartialError struct {
	Pages int
	Items int
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("fetch stopped after %d pages (%d items): %v", e.Pages, e.Items, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Pager walks a paginated collection one page at a time.
//
//	p := engine.NewPager(fetch, 50, 0)
//	for p.Next(ctx) {
//		for _, item := range p.Batch() { ... }
//	}
//	if err := p.Err(); err != nil { ... }
//
// A Pager cannot be restarted.
type Pager[T any] struct {
	fetch    FetchFunc[T]
	pageSize int
	maxItems int

	tok   Token
	batch []T
	pages int
	items int
	done  bool
	err   error
}

// NewPager returns a Pager. Non-positive pageSize and maxItems select the
// defaults.
func NewPager[T any](fetch FetchFunc[T], pageSize, maxItems int) *Pager[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Pager[T]{
		fetch:    fetch,
		pageSize: pageSize,
		maxItems: maxItems,
		tok:      Token{Page: 1},
	}
}

// Next fetches the next page. It returns false when the collection is
// exhausted, the item cap is reached, or a fetch failed.
func (p *Pager[T]) Next(ctx context.Context) bool {
	p.batch = nil
	if p.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		p.fail(err)
		return false
	}

	page, err := p.fetch(ctx, p.tok, p.pageSize)
	if err != nil {
		p.fail(err)
		return false
	}
	p.pages++

	items := page.Items
	switch {
	case page.Last:
		p.done = true
	case len(items) < p.pageSize:
		p.done = true
	}

	if remaining := p.maxItems - p.items; len(items) >= remaining {
		items = items[:remaining]
		p.done = true
	}

	p.items += len(items)
	p.tok = Token{
		Page:   p.tok.Page + 1,
		Offset: p.tok.Offset + len(page.Items),
		Cursor: page.NextCursor,
	}

	if len(items) == 0 {
		p.done = true
		return false
	}
	p.batch = items
	return true
}

func (p *Pager[T]) fail(err error) {
	p.done = true
	if p.pages == 0 {
		p.err = &FirstPageError{Err: err}
		return
	}
	p.err = &PartialError{Pages: p.pages, Items: p.items, Err: err}
}

// Batch returns the items of the current page.
func (p *Pager[T]) Batch() []T { return p.batch }

// Err returns the fetch failure, if any. It is a *FirstPageError when no
// page was fetched and a *PartialError otherwise.
func (p *Pager[T]) Err() error { return p.err }

// Pages returns the number of pages fetched so far.
func (p *Pager[T]) Pages() int { return p.pages }

// Collect drains the pager. Items fetched before a failure are returned
// together with the error.
func Collect[T any](ctx context.Context, p *Pager[T]) ([]T, error) {
	var all []T
	for p.Next(ctx) {
		all = append(all, p.Batch()...)
	}
	return all, p.Err()
}
