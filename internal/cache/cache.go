// Package cache holds the last fetched copy of every collection, keyed by
// resource key, with staleness tracking and change notifications.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/domain"
)

// DefaultRefreshInterval is how often every cached collection is marked
// stale
const DefaultRefreshInterval = 30 * time.Second

// EventKind says what happened to an entry
type EventKind int

const (
	EventSet         EventKind = iota // New contents (fetch or local mutation)
	EventInvalidated                  // Explicitly invalidated; refetch wanted
	EventStale                        // Aged out by the refresh ticker
)

func (k EventKind) String() string {
	switch k {
	case EventSet:
		return "set"
	case EventInvalidated:
		return "invalidated"
	case EventStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the cache changes
type Event struct {
	Key  domain.ResourceKey
	Kind EventKind
}

// EntryInfo describes a cache entry without its contents
type EntryInfo struct {
	LastFetchedAt time.Time
	Stale         bool
	Len           int
}

// record is the persisted form of an entry
type record struct {
	Items         json.RawMessage `json:"items"`
	LastFetchedAt time.Time       `json:"lastFetchedAt"`
	Stale         bool            `json:"stale"`
	Len           int             `json:"len"`
}

// Cache is safe for concurrent use. Entries are only ever replaced
// wholesale; readers get their own copy.
type Cache struct {
	store    domain.Store
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[domain.ResourceKey]*record

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates a cache persisted through store. A non-positive interval
// uses DefaultRefreshInterval.
func New(store domain.Store, logger *slog.Logger, interval time.Duration) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Cache{
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		entries:  make(map[domain.ResourceKey]*record),
		subs:     make(map[int]func(Event)),
	}
}

// lookup returns the entry for key, loading it from the store on first
// use. Entries from a previous run are served but considered stale.
// Caller must hold c.mu.
func (c *Cache) lookup(key domain.ResourceKey) (*record, bool) {
	if rec, ok := c.entries[key]; ok {
		return rec, true
	}
	if c.store == nil {
		return nil, false
	}
	var rec record
	if !c.store.GetEntry(key, &rec) || rec.Items == nil {
		return nil, false
	}
	rec.Stale = true
	c.entries[key] = &rec
	c.logger.Debug("cache loaded from disk", "key", key, "len", rec.Len)
	return &rec, true
}

// persist writes rec through to the store. Caller must hold c.mu.
func (c *Cache) persist(key domain.ResourceKey, rec *record) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveEntry(key, rec); err != nil {
		c.logger.Warn("failed to persist cache entry", "key", key, "error", err)
	}
}

// Get returns a copy of the cached collection for key
func Get[T any](c *Cache, key domain.ResourceKey) ([]T, bool) {
	c.mu.Lock()
	rec, ok := c.lookup(key)
	var raw json.RawMessage
	if ok {
		raw = rec.Items
	}
	c.mu.Unlock()

	if !ok {
		return nil, false
	}
	items, err := decode[T](raw)
	if err != nil {
		c.logger.Error("corrupt cache entry", "key", key, "error", err)
		return nil, false
	}
	return items, true
}

// Set replaces the collection for key with freshly fetched items. A
// collection with a repeated identifier is rejected.
func Set[T domain.Identified](c *Cache, key domain.ResourceKey, items []T) error {
	if err := checkUnique(items); err != nil {
		return err
	}
	raw, err := encode(items)
	if err != nil {
		return err
	}

	c.mu.Lock()
	rec := &record{Items: raw, LastFetchedAt: c.now(), Len: len(items)}
	c.entries[key] = rec
	c.persist(key, rec)
	c.mu.Unlock()

	c.publish(Event{Key: key, Kind: EventSet})
	return nil
}

// Mutate atomically replaces the collection for key with fn's result.
// fn receives a copy of the current items (empty when nothing is cached)
// and runs with the cache locked, so it must not call back into c.
// Freshness is left as it was, and an entry created here starts out stale
// since nothing was fetched. An error from fn leaves the entry untouched.
func Mutate[T domain.Identified](c *Cache, key domain.ResourceKey, fn func(items []T) ([]T, error)) error {
	c.mu.Lock()

	current := []T{}
	rec, ok := c.lookup(key)
	if ok {
		items, err := decode[T](rec.Items)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("corrupt cache entry %s: %w", key, err)
		}
		current = items
	}

	next, err := fn(current)
	if err == nil {
		err = checkUnique(next)
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	raw, err := encode(next)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	updated := &record{Items: raw, Len: len(next), Stale: true}
	if ok {
		updated.LastFetchedAt = rec.LastFetchedAt
		updated.Stale = rec.Stale
	}
	c.entries[key] = updated
	c.persist(key, updated)
	c.mu.Unlock()

	c.publish(Event{Key: key, Kind: EventSet})
	return nil
}

// Invalidate marks key stale so the next read triggers a refetch. Cached
// items are kept for stale-while-revalidate. Invalidating an already stale
// entry changes nothing, but subscribers are told every time.
func (c *Cache) Invalidate(key domain.ResourceKey) {
	c.mu.Lock()
	if rec, ok := c.lookup(key); ok && !rec.Stale {
		rec.Stale = true
		c.persist(key, rec)
	}
	c.mu.Unlock()

	c.publish(Event{Key: key, Kind: EventInvalidated})
}

// DeleteIfEmpty drops the entry for key when it holds no items, so the
// next read treats the collection as never fetched. It reports whether an
// entry was dropped.
func (c *Cache) DeleteIfEmpty(key domain.ResourceKey) bool {
	c.mu.Lock()
	rec, ok := c.lookup(key)
	if !ok || rec.Len > 0 {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, key)
	if c.store != nil {
		c.store.DeleteEntry(key)
	}
	c.mu.Unlock()

	c.publish(Event{Key: key, Kind: EventInvalidated})
	return true
}

// IsStale reports whether key needs a refetch. A missing entry is stale.
func (c *Cache) IsStale(key domain.ResourceKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.lookup(key)
	return !ok || rec.Stale
}

// Entry describes the cached entry for key
func (c *Cache) Entry(key domain.ResourceKey) (EntryInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.lookup(key)
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{LastFetchedAt: rec.LastFetchedAt, Stale: rec.Stale, Len: rec.Len}, true
}

// Keys returns every key with a cached entry, sorted
func (c *Cache) Keys() []domain.ResourceKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeKeys()
}

// activeKeys merges in-memory and persisted keys. Caller must hold c.mu.
func (c *Cache) activeKeys() []domain.ResourceKey {
	seen := make(map[domain.ResourceKey]bool, len(c.entries))
	for k := range c.entries {
		seen[k] = true
	}
	if c.store != nil {
		for _, k := range c.store.EntryKeys() {
			seen[k] = true
		}
	}
	keys := make([]domain.ResourceKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clear drops every entry, in memory and on disk
func (c *Cache) Clear() {
	c.mu.Lock()
	keys := c.activeKeys()
	c.entries = make(map[domain.ResourceKey]*record)
	if c.store != nil {
		c.store.InvalidateAll()
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.publish(Event{Key: k, Kind: EventInvalidated})
	}
}

// MarkAllStale ages out every entry and reports each one as stale
func (c *Cache) MarkAllStale() {
	c.mu.Lock()
	var aged []domain.ResourceKey
	for _, k := range c.activeKeys() {
		rec, ok := c.lookup(k)
		if !ok {
			continue
		}
		if !rec.Stale {
			rec.Stale = true
			c.persist(k, rec)
		}
		aged = append(aged, k)
	}
	c.mu.Unlock()

	for _, k := range aged {
		c.publish(Event{Key: k, Kind: EventStale})
	}
}

// Run marks everything stale on every refresh interval until ctx ends
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logger.Debug("cache refresh tick")
			c.MarkAllStale()
		}
	}
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn runs on the goroutine that changed the cache and must not
// block.
func (c *Cache) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) publish(ev Event) {
	c.subMu.RLock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func checkUnique[T domain.Identified](items []T) error {
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		id := item.GetID()
		if seen[id] {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateID, id)
		}
		seen[id] = true
	}
	return nil
}

func encode[T any](items []T) (json.RawMessage, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return raw, nil
}

func decode[T any](raw json.RawMessage) ([]T, error) {
	items := []T{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
