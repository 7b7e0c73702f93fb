package mutation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/log"
	"github.com/mmcdole/folio/internal/store"
)

type notice struct {
	level   domain.NoticeLevel
	message string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (f *fakeNotifier) Notify(level domain.NoticeLevel, message string) {
	f.mu.Lock()
	f.notices = append(f.notices, notice{level, message})
	f.mu.Unlock()
}

func (f *fakeNotifier) last() notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notices) == 0 {
		return notice{}
	}
	return f.notices[len(f.notices)-1]
}

type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	err     error
	nextID  int
	started chan string
	release chan struct{}
}

func (f *fakeRemote) enter(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- call
	}
	if f.release != nil {
		<-f.release
	}
	return err
}

func (f *fakeRemote) Create(ctx context.Context, payload domain.Skill) (domain.Skill, error) {
	if err := f.enter("create " + payload.GetID()); err != nil {
		return domain.Skill{}, err
	}
	f.mu.Lock()
	f.nextID++
	payload.ID = domain.ID(strconv.Itoa(100 + f.nextID))
	f.mu.Unlock()
	return payload, nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, payload domain.Skill) (domain.Skill, error) {
	if err := f.enter("update " + id); err != nil {
		return domain.Skill{}, err
	}
	return payload, nil
}

func (f *fakeRemote) Remove(ctx context.Context, id string) error {
	return f.enter("delete " + id)
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func seed() []domain.Skill {
	return []domain.Skill{
		{ID: "1", Name: "Go", Level: 90},
		{ID: "5", Name: "React", Level: 60},
		{ID: "7", Name: "SQL", Level: 75},
	}
}

func setup(t *testing.T, remote *fakeRemote) (*Coordinator[domain.Skill], *cache.Cache, *fakeNotifier) {
	t.Helper()
	c := cache.New(store.NewMemoryStore(), log.NullLogger(), time.Hour)
	assert.Equal(t, cache.Set(c, domain.KeySkills, seed()), nil)
	n := &fakeNotifier{}
	co := NewCoordinator[domain.Skill](domain.KeySkills, "skill", c, remote, n, log.NullLogger())
	return co, c, n
}

func cached(t *testing.T, c *cache.Cache) []domain.Skill {
	t.Helper()
	items, ok := cache.Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, true)
	return items
}

func TestUpdateSuccessInvalidates(t *testing.T) {
	remote := &fakeRemote{}
	co, c, n := setup(t, remote)

	got, err := co.Apply(context.Background(), OpUpdate, domain.Skill{ID: "5", Name: "React", Level: 80})
	assert.Equal(t, err, nil)
	assert.Equal(t, got.Level, 80)
	assert.Equal(t, cached(t, c)[1].Level, 80)
	assert.Equal(t, c.IsStale(domain.KeySkills), true)
	assert.Equal(t, n.last(), notice{domain.NoticeSuccess, "Skill updated"})
}

func TestUpdateNetworkFailureRollsBack(t *testing.T) {
	remote := &fakeRemote{err: &domain.NetworkError{Err: errors.New("connection refused")}}
	co, c, n := setup(t, remote)

	var seen []int
	c.Subscribe(func(ev cache.Event) {
		if ev.Kind == cache.EventSet {
			items, _ := cache.Get[domain.Skill](c, domain.KeySkills)
			seen = append(seen, items[1].Level)
		}
	})

	_, err := co.Apply(context.Background(), OpUpdate, domain.Skill{ID: "5", Name: "React", Level: 80})
	assert.Equal(t, domain.KindOf(err), domain.KindNetwork)

	// Subscribers saw the optimistic value, then the restored one
	assert.Equal(t, seen, []int{80, 60})
	assert.Equal(t, cached(t, c), seed())
	assert.Equal(t, n.last(), notice{domain.NoticeError, domain.GenericFailureMessage})
}

func TestRemoteRejectionShowsServerMessage(t *testing.T) {
	remote := &fakeRemote{err: &domain.RemoteError{Status: 409, Message: "skill in use"}}
	co, c, n := setup(t, remote)

	_, err := co.Apply(context.Background(), OpDelete, domain.Skill{ID: "5"})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, cached(t, c), seed())
	assert.Equal(t, n.last().message, "skill in use")
}

func TestCreateUsesProvisionalID(t *testing.T) {
	remote := &fakeRemote{started: make(chan string, 1), release: make(chan struct{})}
	co, c, _ := setup(t, remote)

	done := make(chan domain.Skill)
	go func() {
		got, _ := co.Apply(context.Background(), OpCreate, domain.Skill{Name: "Rust", Level: 40})
		done <- got
	}()

	call := <-remote.started
	assert.Equal(t, call, "create ")
	during := cached(t, c)
	assert.Equal(t, len(during), 4)
	assert.Equal(t, IsTempID(during[3].GetID()), true)
	assert.Equal(t, co.Pending(during[3].GetID()), true)

	close(remote.release)
	got := <-done
	assert.Equal(t, got.GetID(), "101")

	after := cached(t, c)
	assert.Equal(t, len(after), 4)
	assert.Equal(t, after[3].GetID(), "101")
	assert.Equal(t, co.Pending(during[3].GetID()), false)
}

func TestCreateFailureRemovesProvisionalRecord(t *testing.T) {
	remote := &fakeRemote{err: &domain.RemoteError{Status: 400, Message: "bad"}}
	co, c, _ := setup(t, remote)

	_, err := co.Apply(context.Background(), OpCreate, domain.Skill{Name: "Rust"})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, cached(t, c), seed())
}

func TestCreateWithExistingIDRejected(t *testing.T) {
	remote := &fakeRemote{}
	co, _, _ := setup(t, remote)

	_, err := co.Apply(context.Background(), OpCreate, domain.Skill{ID: "5", Name: "dup"})
	assert.Equal(t, domain.KindOf(err), domain.KindValidation)
	assert.Equal(t, len(remote.callLog()), 0)
}

func TestDeleteRollbackRestoresPosition(t *testing.T) {
	remote := &fakeRemote{err: &domain.NetworkError{Err: errors.New("reset")}}
	co, c, _ := setup(t, remote)

	_, err := co.Apply(context.Background(), OpDelete, domain.Skill{ID: "1"})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, cached(t, c), seed())
}

func TestFailedCreateOnUnfetchedCollectionLeavesNoEntry(t *testing.T) {
	remote := &fakeRemote{err: &domain.NetworkError{Err: errors.New("connection refused")}}
	c := cache.New(store.NewMemoryStore(), log.NullLogger(), time.Hour)
	co := NewCoordinator[domain.Skill](domain.KeySkills, "skill", c, remote, &fakeNotifier{}, log.NullLogger())
	assert.Equal(t, c.IsStale(domain.KeySkills), true)

	var kinds []cache.EventKind
	c.Subscribe(func(ev cache.Event) { kinds = append(kinds, ev.Kind) })

	_, err := co.Apply(context.Background(), OpCreate, domain.Skill{Name: "Go", Level: 50})
	assert.Equal(t, domain.KindOf(err), domain.KindNetwork)

	items, ok := cache.Get[domain.Skill](c, domain.KeySkills)
	assert.Equal(t, ok, false)
	assert.Equal(t, len(items), 0)
	assert.Equal(t, c.IsStale(domain.KeySkills), true)
	assert.Equal(t, kinds, []cache.EventKind{cache.EventSet, cache.EventSet, cache.EventInvalidated})
}

func TestUpdateWithoutIDRejected(t *testing.T) {
	remote := &fakeRemote{}
	co, _, _ := setup(t, remote)

	_, err := co.Apply(context.Background(), OpUpdate, domain.Skill{Name: "x"})
	assert.Equal(t, domain.KindOf(err), domain.KindValidation)
	assert.Equal(t, len(remote.callLog()), 0)
}

func TestSameIDMutationsAreSerialized(t *testing.T) {
	remote := &fakeRemote{started: make(chan string, 4), release: make(chan struct{})}
	co, c, _ := setup(t, remote)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		co.Apply(ctx, OpUpdate, domain.Skill{ID: "5", Name: "React", Level: 70})
	}()
	<-remote.started

	go func() {
		defer wg.Done()
		co.Apply(ctx, OpUpdate, domain.Skill{ID: "5", Name: "React", Level: 80})
	}()

	select {
	case <-remote.started:
		t.Fatal("second update reached the server while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, co.Pending("5"), true)
	assert.Equal(t, cached(t, c)[1].Level, 70)

	remote.release <- struct{}{}
	<-remote.started
	remote.release <- struct{}{}
	wg.Wait()

	assert.Equal(t, remote.callLog(), []string{"update 5", "update 5"})
	assert.Equal(t, cached(t, c)[1].Level, 80)
	assert.Equal(t, co.Pending("5"), false)
}

func TestDifferentIDsRunConcurrently(t *testing.T) {
	remote := &fakeRemote{started: make(chan string, 4), release: make(chan struct{})}
	co, c, _ := setup(t, remote)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, id := range []string{"1", "7"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			co.Apply(ctx, OpUpdate, domain.Skill{ID: domain.ID(id), Name: "x", Level: 10})
		}()
	}

	for range 2 {
		select {
		case <-remote.started:
		case <-time.After(2 * time.Second):
			t.Fatal("mutations on different ids blocked each other")
		}
	}
	close(remote.release)
	wg.Wait()

	items := cached(t, c)
	assert.Equal(t, items[0].Level, 10)
	assert.Equal(t, items[2].Level, 10)
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	assert.Equal(t, m.Lock(context.Background(), "a"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, errors.Is(m.Lock(ctx, "a"), context.DeadlineExceeded), true)

	m.Unlock("a")
	assert.Equal(t, m.Held("a"), false)
	assert.Equal(t, m.Lock(context.Background(), "a"), nil)
	m.Unlock("a")
}
