// Package blog pages through the public post feed and runs server-side
// post searches.
package blog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/search"
)

// ErrSuperseded is returned by Search when a newer search replaced it
var ErrSuperseded = errors.New("search superseded by a newer query")

// PageSource fetches one page of posts. *api.Client satisfies it.
type PageSource interface {
	FetchPostsPage(ctx context.Context, page, limit int, query string) (api.Page[domain.Post], error)
}

// State is a snapshot of the feed
type State struct {
	Posts    []domain.Post
	Query    string
	HasMore  bool
	NextPage int
	Loading  bool
}

// Feed accumulates pages of posts for the current query
type Feed struct {
	source   PageSource
	pageSize int
	logger   *slog.Logger
	seq      search.Sequencer

	mu       sync.Mutex
	posts    []domain.Post
	query    string
	nextPage int
	hasMore  bool
	loading  bool
}

// NewFeed creates an empty feed
func NewFeed(source PageSource, pageSize int, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = api.DefaultPageSize
	}
	return &Feed{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
		nextPage: 1,
		hasMore:  true,
	}
}

// State returns a copy of the feed's current state
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Posts:    append([]domain.Post(nil), f.posts...),
		Query:    f.query,
		HasMore:  f.hasMore,
		NextPage: f.nextPage,
		Loading:  f.loading,
	}
}

// LoadNext fetches the next page for the current query and appends it.
// It reports whether anything was loaded.
func (f *Feed) LoadNext(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if !f.hasMore || f.loading {
		f.mu.Unlock()
		return false, nil
	}
	f.loading = true
	page, query := f.nextPage, f.query
	token := f.seq.Next()
	f.mu.Unlock()

	result, err := f.source.FetchPostsPage(ctx, page, f.pageSize, query)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seq.Current(token) {
		// A search reset the feed while this page was loading
		return false, nil
	}
	f.loading = false
	if err != nil {
		f.logger.Error("failed to load posts page", "page", page, "error", err)
		return false, err
	}

	f.apply(result, page)
	return len(result.Items) > 0, nil
}

// Search replaces the feed with the first page of results for query. If
// another search starts before this one returns, this one's results are
// discarded and ErrSuperseded is returned.
func (f *Feed) Search(ctx context.Context, query string) ([]domain.Post, error) {
	token := f.seq.Next()

	f.mu.Lock()
	f.query = query
	f.posts = nil
	f.nextPage = 1
	f.hasMore = true
	f.loading = true
	f.mu.Unlock()

	result, err := f.source.FetchPostsPage(ctx, 1, f.pageSize, query)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.seq.Current(token) {
		f.logger.Debug("discarding superseded search", "query", query)
		return nil, ErrSuperseded
	}
	f.loading = false
	if err != nil {
		f.logger.Error("post search failed", "query", query, "error", err)
		return nil, err
	}

	f.apply(result, 1)
	return append([]domain.Post(nil), f.posts...), nil
}

// Reset clears the feed and cancels anything in flight
func (f *Feed) Reset() {
	f.seq.Cancel()
	f.mu.Lock()
	f.posts = nil
	f.query = ""
	f.nextPage = 1
	f.hasMore = true
	f.loading = false
	f.mu.Unlock()
}

// apply appends a page, dropping posts already present. Caller holds f.mu.
func (f *Feed) apply(result api.Page[domain.Post], page int) {
	seen := make(map[string]bool, len(f.posts))
	for _, p := range f.posts {
		seen[p.GetID()] = true
	}
	for _, p := range result.Items {
		if !seen[p.GetID()] {
			f.posts = append(f.posts, p)
			seen[p.GetID()] = true
		}
	}

	f.hasMore = HasMore(result, page, f.pageSize)
	if f.hasMore {
		f.nextPage = page + 1
	}
}

// HasMore decides whether another page follows page. Totals win when the
// server sends them; otherwise a short page is the last one.
func HasMore(result api.Page[domain.Post], page, pageSize int) bool {
	if result.TotalPages > 0 {
		return page < result.TotalPages
	}
	if result.Total > 0 && result.PageSize > 0 {
		return page*result.PageSize < result.Total
	}
	return len(result.Items) >= pageSize && len(result.Items) > 0
}
