// Package mutation applies admin edits optimistically: the cache changes
// first, the server is asked second, and the change is undone if the
// server says no.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/domain"
)

// TempIDPrefix marks identifiers assigned locally to unsaved records
const TempIDPrefix = "tmp-"

// Op is the kind of mutation
type Op int

const (
	OpCreate Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

func (o Op) pastTense() string {
	switch o {
	case OpCreate:
		return "created"
	case OpUpdate:
		return "updated"
	default:
		return "deleted"
	}
}

// Remote performs the server side of a mutation. *api.Resource satisfies it.
type Remote[T any] interface {
	Create(ctx context.Context, payload T) (T, error)
	Update(ctx context.Context, id string, payload T) (T, error)
	Remove(ctx context.Context, id string) error
}

// IsTempID reports whether id was assigned locally
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// NewTempID returns a fresh provisional identifier
func NewTempID() string {
	return TempIDPrefix + strings.ToLower(ulid.Make().String())
}

// pending is the rollback information for one in-flight mutation
type pending[T any] struct {
	id      string
	op      Op
	prev    T
	existed bool
	index   int
	// fresh is set when the collection had no cache entry before apply
	fresh bool
}

// Coordinator runs optimistic mutations against one cached collection
type Coordinator[T domain.Record[T]] struct {
	key      domain.ResourceKey
	label    string // "skill", used in notifications
	cache    *cache.Cache
	remote   Remote[T]
	notifier domain.Notifier
	locks    *KeyedMutex
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator for the collection at key
func NewCoordinator[T domain.Record[T]](
	key domain.ResourceKey,
	label string,
	c *cache.Cache,
	remote Remote[T],
	notifier domain.Notifier,
	logger *slog.Logger,
) *Coordinator[T] {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = domain.NoOpNotifier{}
	}
	return &Coordinator[T]{
		key:      key,
		label:    label,
		cache:    c,
		remote:   remote,
		notifier: notifier,
		locks:    NewKeyedMutex(),
		logger:   logger.With("resource", string(key)),
	}
}

// Pending reports whether a mutation on id is running or queued
func (co *Coordinator[T]) Pending(id string) bool {
	return co.locks.Held(id)
}

// Apply changes the cache immediately, then performs the remote call. On
// success the server's record replaces the optimistic one and the entry
// is invalidated so a refetch reconciles server-side effects. On failure
// the record is put back the way it was and the error is surfaced through
// the notifier. Mutations on the same identifier run one after another.
func (co *Coordinator[T]) Apply(ctx context.Context, op Op, payload T) (T, error) {
	var zero T

	id := payload.GetID()
	switch op {
	case OpCreate:
		if id == "" {
			id = NewTempID()
			payload = payload.WithID(id)
		} else if co.contains(id) {
			return zero, domain.ValidationErrors{{Field: "id", Message: "already exists"}}
		}
	case OpUpdate, OpDelete:
		if id == "" {
			return zero, domain.ValidationErrors{{Field: "id", Message: "is required"}}
		}
	default:
		return zero, fmt.Errorf("unknown mutation %d", op)
	}

	if err := co.locks.Lock(ctx, id); err != nil {
		return zero, err
	}
	defer co.locks.Unlock(id)

	p, err := co.applyLocal(op, id, payload)
	if err != nil {
		return zero, err
	}
	co.logger.Debug("optimistic apply", "op", op, "id", id)

	result, err := co.call(ctx, op, id, payload)
	if err != nil {
		co.rollback(p)
		co.logger.Error("mutation failed, rolled back", "op", op, "id", id, "error", err)
		co.notifier.Notify(domain.NoticeError, domain.UserMessage(err))
		return zero, err
	}

	if op != OpDelete {
		if err := co.reconcile(id, result); err != nil {
			co.logger.Warn("failed to swap in server record", "id", id, "error", err)
		}
	}
	co.cache.Invalidate(co.key)
	co.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%s %s", capitalize(co.label), op.pastTense()))

	return result, nil
}

func (co *Coordinator[T]) call(ctx context.Context, op Op, id string, payload T) (T, error) {
	switch op {
	case OpCreate:
		// The provisional id never leaves the client
		if IsTempID(id) {
			payload = payload.WithID("")
		}
		return co.remote.Create(ctx, payload)
	case OpUpdate:
		return co.remote.Update(ctx, id, payload)
	default:
		return payload, co.remote.Remove(ctx, id)
	}
}

func (co *Coordinator[T]) contains(id string) bool {
	items, ok := cache.Get[T](co.cache, co.key)
	if !ok {
		return false
	}
	return indexOf(items, id) >= 0
}

// applyLocal snapshots the target record and writes the optimistic change
func (co *Coordinator[T]) applyLocal(op Op, id string, payload T) (pending[T], error) {
	p := pending[T]{id: id, op: op, index: -1}
	if _, ok := co.cache.Entry(co.key); !ok {
		p.fresh = true
	}

	err := cache.Mutate(co.cache, co.key, func(items []T) ([]T, error) {
		i := indexOf(items, id)
		if i >= 0 {
			p.prev = items[i]
			p.existed = true
			p.index = i
		}

		switch op {
		case OpCreate:
			if i >= 0 {
				return nil, domain.ValidationErrors{{Field: "id", Message: "already exists"}}
			}
			return append(items, payload), nil
		case OpUpdate:
			if i < 0 {
				return append(items, payload), nil
			}
			items[i] = payload
			return items, nil
		default:
			if i < 0 {
				return items, nil
			}
			return append(items[:i], items[i+1:]...), nil
		}
	})
	return p, err
}

// rollback restores the target record to its pre-apply state at its
// pre-apply position. Other records are left as they are now.
func (co *Coordinator[T]) rollback(p pending[T]) {
	err := cache.Mutate(co.cache, co.key, func(items []T) ([]T, error) {
		i := indexOf(items, p.id)
		if i >= 0 {
			items = append(items[:i], items[i+1:]...)
		}
		if !p.existed {
			return items, nil
		}
		at := p.index
		if at > len(items) {
			at = len(items)
		}
		items = append(items, p.prev)
		copy(items[at+1:], items[at:])
		items[at] = p.prev
		return items, nil
	})
	if err != nil {
		co.logger.Error("rollback failed", "id", p.id, "error", err)
		return
	}
	// A collection that was never fetched goes back to having no entry
	if p.fresh {
		co.cache.DeleteIfEmpty(co.key)
	}
}

// reconcile swaps the server's record in for the optimistic one
func (co *Coordinator[T]) reconcile(id string, canonical T) error {
	return cache.Mutate(co.cache, co.key, func(items []T) ([]T, error) {
		newID := canonical.GetID()
		if newID == "" {
			return items, nil
		}
		if newID != id {
			// A refetch may already have brought the saved record in
			if j := indexOf(items, newID); j >= 0 {
				items = append(items[:j], items[j+1:]...)
			}
		}
		if i := indexOf(items, id); i >= 0 {
			items[i] = canonical
			return items, nil
		}
		return append(items, canonical), nil
	})
}

func indexOf[T domain.Identified](items []T, id string) int {
	for i, item := range items {
		if item.GetID() == id {
			return i
		}
	}
	return -1
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
