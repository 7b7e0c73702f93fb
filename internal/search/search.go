// Package search filters cached collections locally and sequences
// server-side searches so that only the latest one is applied.
package search

import (
	"sort"
	"strings"
	"sync/atomic"

	fsearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/folio/internal/domain"
)

// TagPrefix restricts a query to tags: "#go" matches items tagged "golang"
const TagPrefix = "#"

// Tagged is implemented by records that carry tags or technologies
type Tagged interface {
	GetTags() []string
}

// Result is a matched item with match metadata for highlighting
type Result[T domain.ListItem] struct {
	Item           T
	MatchedIndexes []int // Rune positions in the title; nil for tag matches
	Score          int
}

// Filter fuzzy-matches query against item titles, best match first. Items
// whose title does not match but whose tags do are appended after the
// title matches. An empty query returns every item in its original order.
func Filter[T domain.ListItem](query string, items []T) []Result[T] {
	query = strings.TrimSpace(query)
	if query == "" {
		results := make([]Result[T], len(items))
		for i, item := range items {
			results[i] = Result[T]{Item: item}
		}
		return results
	}

	if tag, ok := strings.CutPrefix(query, TagPrefix); ok {
		return byTag(tag, items, nil)
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = strings.ToLower(item.GetTitle())
	}

	matches := fuzzy.Find(strings.ToLower(query), titles)
	results := make([]Result[T], 0, len(matches))
	matched := make(map[int]bool, len(matches))
	for _, m := range matches {
		matched[m.Index] = true
		results = append(results, Result[T]{
			Item:           items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		})
	}

	return append(results, byTag(query, items, matched)...)
}

// byTag returns items with a tag matching query, closest first, skipping
// indexes in exclude
func byTag[T domain.ListItem](query string, items []T, exclude map[int]bool) []Result[T] {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	type hit struct {
		index    int
		distance int
	}
	var hits []hit
	for i, item := range items {
		if exclude[i] {
			continue
		}
		tagged, ok := any(item).(Tagged)
		if !ok {
			continue
		}
		ranks := fsearch.RankFindFold(query, tagged.GetTags())
		if len(ranks) == 0 {
			continue
		}
		sort.Sort(ranks)
		hits = append(hits, hit{index: i, distance: ranks[0].Distance})
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].distance < hits[b].distance })

	results := make([]Result[T], len(hits))
	for i, h := range hits {
		results[i] = Result[T]{Item: items[h.index], Score: -h.distance}
	}
	return results
}

// HasTag reports whether any of tags fuzzily contains query
func HasTag(query string, tags []string) bool {
	for _, t := range tags {
		if fsearch.MatchFold(query, t) {
			return true
		}
	}
	return false
}

// Items unwraps filter results
func Items[T domain.ListItem](results []Result[T]) []T {
	items := make([]T, len(results))
	for i, r := range results {
		items[i] = r.Item
	}
	return items
}

// Sequencer hands out monotonically increasing request tokens. A response
// is applied only if its token is still the latest one issued, so slower
// responses to superseded requests are dropped.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a token for a new request, superseding all earlier ones
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// Current reports whether token is still the latest
func (s *Sequencer) Current(token uint64) bool {
	return s.latest.Load() == token
}

// Cancel supersedes every outstanding token
func (s *Sequencer) Cancel() {
	s.latest.Add(1)
}
