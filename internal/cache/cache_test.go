package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/log"
	"github.com/mmcdole/folio/internal/store"
)

func skills() []domain.Skill {
	return []domain.Skill{
		{ID: "1", Name: "Go", Level: 90, Category: "backend"},
		{ID: "5", Name: "React", Level: 60, Category: "frontend"},
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New(store.NewMemoryStore(), log.NullLogger(), time.Hour)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)

	_, ok := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, false)
	assert.Equal(t, c.IsStale(domain.KeySkills), true)

	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)
	got, ok := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, true)
	assert.Equal(t, got, skills())
	assert.Equal(t, c.IsStale(domain.KeySkills), false)

	info, ok := c.Entry(domain.KeySkills)
	assert.Equal(t, ok, true)
	assert.Equal(t, info.Len, 2)
	assert.Equal(t, info.LastFetchedAt.IsZero(), false)
}

func TestGetReturnsCopy(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)

	got, _ := Get[domain.Skill](c, domain.KeySkills)
	got[0].Level = 1

	again, _ := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, again[0].Level, 90)
}

func TestSetRejectsDuplicateIDs(t *testing.T) {
	c := newTestCache(t)
	dup := append(skills(), domain.Skill{ID: "1", Name: "Go again"})

	err := Set(c, domain.KeySkills, dup)
	assert.Equal(t, errors.Is(err, domain.ErrDuplicateID), true)
	_, ok := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, false)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)

	c.Invalidate(domain.KeySkills)
	once, _ := c.Entry(domain.KeySkills)
	onceItems, _ := Get[domain.Skill](c, domain.KeySkills)

	c.Invalidate(domain.KeySkills)
	twice, _ := c.Entry(domain.KeySkills)
	twiceItems, _ := Get[domain.Skill](c, domain.KeySkills)

	assert.Equal(t, once.Stale, true)
	assert.Equal(t, once, twice)
	assert.Equal(t, onceItems, twiceItems)
	assert.Equal(t, twiceItems, skills())
}

func TestMutateKeepsFreshness(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)
	before, _ := c.Entry(domain.KeySkills)

	err := Mutate(c, domain.KeySkills, func(items []domain.Skill) ([]domain.Skill, error) {
		items[1].Level = 80
		return items, nil
	})
	assert.Equal(t, err, nil)

	got, _ := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, got[1].Level, 80)
	after, _ := c.Entry(domain.KeySkills)
	assert.Equal(t, after.LastFetchedAt.Equal(before.LastFetchedAt), true)
	assert.Equal(t, after.Stale, false)
}

func TestMutateOnMissingEntryIsStale(t *testing.T) {
	c := newTestCache(t)

	err := Mutate(c, domain.KeySkills, func(items []domain.Skill) ([]domain.Skill, error) {
		return append(items, domain.Skill{ID: "1", Name: "Go"}), nil
	})
	assert.Equal(t, err, nil)

	entry, ok := c.Entry(domain.KeySkills)
	assert.Equal(t, ok, true)
	assert.Equal(t, entry.Stale, true)
	assert.Equal(t, entry.LastFetchedAt.IsZero(), true)
}

func TestDeleteIfEmpty(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)
	assert.Equal(t, Set(c, domain.KeyPosts, []domain.Post{}), nil)

	rec := &recorder{}
	c.Subscribe(rec.record)

	assert.Equal(t, c.DeleteIfEmpty(domain.KeySkills), false)
	assert.Equal(t, c.DeleteIfEmpty(domain.KeyPosts), true)
	assert.Equal(t, c.DeleteIfEmpty(domain.KeyPosts), false)

	_, ok := c.Entry(domain.KeyPosts)
	assert.Equal(t, ok, false)
	assert.Equal(t, c.Keys(), []domain.ResourceKey{domain.KeySkills})
	assert.Equal(t, rec.kinds(), []EventKind{EventInvalidated})
}

func TestMutateErrorLeavesEntry(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)

	boom := errors.New("boom")
	err := Mutate(c, domain.KeySkills, func(items []domain.Skill) ([]domain.Skill, error) {
		return nil, boom
	})
	assert.Equal(t, err, boom)

	err = Mutate(c, domain.KeySkills, func(items []domain.Skill) ([]domain.Skill, error) {
		return append(items, items[0]), nil
	})
	assert.Equal(t, errors.Is(err, domain.ErrDuplicateID), true)

	got, _ := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, got, skills())
}

func TestSubscribe(t *testing.T) {
	c := newTestCache(t)
	rec := &recorder{}
	unsubscribe := c.Subscribe(rec.record)

	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)
	c.Invalidate(domain.KeySkills)
	c.MarkAllStale()
	unsubscribe()
	c.Invalidate(domain.KeySkills)

	assert.Equal(t, rec.kinds(), []EventKind{EventSet, EventInvalidated, EventStale})
}

func TestClear(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)
	assert.Equal(t, Set(c, domain.KeyPosts, []domain.Post{{Slug: "a"}}), nil)

	c.Clear()
	assert.Equal(t, len(c.Keys()), 0)
	_, ok := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, false)
}

func TestEntriesFromDiskAreStale(t *testing.T) {
	dir := t.TempDir()

	s, err := store.NewBoltStore(dir, "")
	assert.Equal(t, err, nil)
	c := New(s, log.NullLogger(), time.Hour)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)
	assert.Equal(t, s.Close(), nil)

	s, err = store.NewBoltStore(dir, "")
	assert.Equal(t, err, nil)
	defer s.Close()
	c = New(s, log.NullLogger(), time.Hour)

	got, ok := Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, true)
	assert.Equal(t, got, skills())
	assert.Equal(t, c.IsStale(domain.KeySkills), true)
	assert.Equal(t, c.Keys(), []domain.ResourceKey{domain.KeySkills})
}

func TestRunMarksStale(t *testing.T) {
	c := New(store.NewMemoryStore(), log.NullLogger(), 5*time.Millisecond)
	assert.Equal(t, Set(c, domain.KeySkills, skills()), nil)

	stale := make(chan Event, 8)
	c.Subscribe(func(ev Event) {
		if ev.Kind == EventStale {
			select {
			case stale <- ev:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case ev := <-stale:
		assert.Equal(t, ev.Key, domain.KeySkills)
	case <-time.After(2 * time.Second):
		t.Fatal("no stale event")
	}
	assert.Equal(t, c.IsStale(domain.KeySkills), true)
}
