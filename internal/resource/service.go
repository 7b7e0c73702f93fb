// Package resource composes the API client, the cache and the mutation
// coordinator into one service per collection.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/mutation"
)

// backgroundTimeout bounds revalidations nobody is waiting on
const backgroundTimeout = 30 * time.Second

// Remote is the server side of a collection. *api.Resource satisfies it.
type Remote[T any] interface {
	mutation.Remote[T]
	FetchAll(ctx context.Context) ([]T, error)
	FetchOne(ctx context.Context, id string) (T, error)
}

// Config describes one collection
type Config[T any] struct {
	Key      domain.ResourceKey
	Label    string // Singular noun used in notifications
	Remote   Remote[T]
	Validate func(T) error // Runs before any mutation reaches the network
	Prepare  func(T) T     // Fills derived fields (e.g. a post's slug)
	// Batch updates many records in one server call; nil when the
	// endpoint has no batch form
	Batch mutation.BatchSender[T]
	// AppendOnly collections accept new records but never change or
	// remove existing ones
	AppendOnly bool
}

// Service serves one collection from the cache and keeps it in sync
type Service[T domain.Record[T]] struct {
	key      domain.ResourceKey
	remote   Remote[T]
	cache    *cache.Cache
	coord    *mutation.Coordinator[T]
	validate func(T) error
	prepare    func(T) T
	batch      mutation.BatchSender[T]
	appendOnly bool
	logger     *slog.Logger

	revalMu  sync.Mutex
	inFlight bool
	queued   bool
}

// NewService creates a new collection service
func NewService[T domain.Record[T]](cfg Config[T], c *cache.Cache, notifier domain.Notifier, logger *slog.Logger) *Service[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service[T]{
		key:      cfg.Key,
		remote:   cfg.Remote,
		cache:    c,
		coord:    mutation.NewCoordinator[T](cfg.Key, cfg.Label, c, cfg.Remote, notifier, logger),
		validate: cfg.Validate,
		prepare:    cfg.Prepare,
		batch:      cfg.Batch,
		appendOnly: cfg.AppendOnly,
		logger:     logger.With("resource", string(cfg.Key)),
	}
}

// Key returns the collection's resource key
func (s *Service[T]) Key() domain.ResourceKey {
	return s.key
}

// AppendOnly reports whether existing records are frozen
func (s *Service[T]) AppendOnly() bool {
	return s.appendOnly
}

// === Queries (cache-only, never block on the network) ===

// Cached returns the cached collection
func (s *Service[T]) Cached() ([]T, bool) {
	return cache.Get[T](s.cache, s.key)
}

// IsStale reports whether the collection needs a refetch
func (s *Service[T]) IsStale() bool {
	return s.cache.IsStale(s.key)
}

// Pending reports whether a mutation on id is in flight
func (s *Service[T]) Pending(id string) bool {
	return s.coord.Pending(id)
}

// === Fetching ===

// Get returns the collection, stale-while-revalidate: cached data comes
// back immediately and a stale entry is refreshed in the background. Only
// a cache miss waits for the network.
func (s *Service[T]) Get(ctx context.Context) ([]T, error) {
	if items, ok := s.Cached(); ok {
		if s.IsStale() {
			go s.revalidateInBackground()
		}
		return items, nil
	}
	return s.Fetch(ctx)
}

// Fetch loads the collection from the server and replaces the cache entry
func (s *Service[T]) Fetch(ctx context.Context) ([]T, error) {
	items, err := s.remote.FetchAll(ctx)
	if err != nil {
		s.logger.Error("failed to fetch collection", "error", err)
		return nil, err
	}
	if err := cache.Set(s.cache, s.key, items); err != nil {
		s.logger.Error("failed to cache collection", "error", err)
		return nil, err
	}
	s.logger.Info("loaded collection", "count", len(items))
	return items, nil
}

// FetchOne loads a single record and merges it into the cached collection
func (s *Service[T]) FetchOne(ctx context.Context, id string) (T, error) {
	item, err := s.remote.FetchOne(ctx, id)
	if err != nil {
		s.logger.Error("failed to fetch record", "id", id, "error", err)
		return item, err
	}
	if _, ok := s.Cached(); ok {
		err := cache.Mutate(s.cache, s.key, func(items []T) ([]T, error) {
			for i := range items {
				if items[i].GetID() == item.GetID() {
					items[i] = item
					return items, nil
				}
			}
			return append(items, item), nil
		})
		if err != nil {
			s.logger.Warn("failed to merge record", "id", id, "error", err)
		}
	}
	return item, nil
}

// Revalidate refetches the collection. Calls that arrive while a refetch
// is running are folded into a single follow-up refetch and return
// immediately.
func (s *Service[T]) Revalidate(ctx context.Context) error {
	s.revalMu.Lock()
	if s.inFlight {
		s.queued = true
		s.revalMu.Unlock()
		return nil
	}
	s.inFlight = true
	s.revalMu.Unlock()

	for {
		_, err := s.Fetch(ctx)

		s.revalMu.Lock()
		if !s.queued || err != nil || ctx.Err() != nil {
			s.inFlight = false
			s.queued = false
			s.revalMu.Unlock()
			return err
		}
		s.queued = false
		s.revalMu.Unlock()
	}
}

func (s *Service[T]) revalidateInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()
	if err := s.Revalidate(ctx); err != nil {
		s.logger.Warn("background revalidation failed", "error", err)
	}
}

// Watch refetches the collection whenever its entry is invalidated or
// goes stale, until ctx ends
func (s *Service[T]) Watch(ctx context.Context) {
	signal := make(chan struct{}, 1)
	unsubscribe := s.cache.Subscribe(func(ev cache.Event) {
		if ev.Key != s.key || ev.Kind == cache.EventSet {
			return
		}
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			if err := s.Revalidate(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("revalidation failed", "error", err)
			}
		}
	}
}

// === Commands ===

// Create validates item and adds it optimistically
func (s *Service[T]) Create(ctx context.Context, item T) (T, error) {
	return s.mutate(ctx, mutation.OpCreate, item)
}

// Update validates item and replaces it optimistically
func (s *Service[T]) Update(ctx context.Context, item T) (T, error) {
	return s.mutate(ctx, mutation.OpUpdate, item)
}

// Delete removes the record with id optimistically
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	var zero T
	_, err := s.mutate(ctx, mutation.OpDelete, zero.WithID(id))
	return err
}

func (s *Service[T]) mutate(ctx context.Context, op mutation.Op, item T) (T, error) {
	var zero T
	if s.appendOnly && op != mutation.OpCreate {
		return zero, domain.ErrReadOnly
	}
	if op != mutation.OpDelete {
		var err error
		if item, err = s.check(op, item); err != nil {
			return zero, err
		}
	}
	return s.coord.Apply(ctx, op, item)
}

// UpdateMany replaces several records optimistically in one server call.
// Nothing is sent unless every record passes validation.
func (s *Service[T]) UpdateMany(ctx context.Context, items []T) error {
	if s.appendOnly {
		return domain.ErrReadOnly
	}
	if s.batch == nil {
		return fmt.Errorf("%s: %w", s.key, errors.ErrUnsupported)
	}
	checked := make([]T, 0, len(items))
	for _, item := range items {
		item, err := s.check(mutation.OpUpdate, item)
		if err != nil {
			return err
		}
		checked = append(checked, item)
	}
	return s.coord.ApplyBatch(ctx, checked, s.batch)
}

func (s *Service[T]) check(op mutation.Op, item T) (T, error) {
	if s.prepare != nil {
		item = s.prepare(item)
	}
	if s.validate != nil {
		if err := s.validate(item); err != nil {
			s.logger.Debug("validation failed", "op", op, "error", err)
			return item, err
		}
	}
	return item, nil
}
