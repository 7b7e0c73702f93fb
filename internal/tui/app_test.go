package tui

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/assert/v2"

	"github.com/mmcdole/folio/internal/app"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/config"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/log"
	"github.com/mmcdole/folio/internal/store"
)

func newTestModel(t *testing.T, r http.Handler) (Model, *app.App) {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.URL = srv.URL + "/api"
	cfg.API.Retries = 0
	cfg.Cache.RefreshInterval = time.Hour

	a := app.NewWithStore(cfg, store.NewMemoryStore(), log.NullLogger())
	t.Cleanup(func() { a.Close() })

	err := cache.Set(a.Cache, domain.KeySkills, []domain.Skill{
		{ID: "1", Name: "Go", Level: 90, Category: "backend"},
		{ID: "2", Name: "React", Level: 60, Category: "frontend"},
		{ID: "3", Name: "Rust", Level: 40, Category: "backend"},
	})
	assert.Equal(t, err, nil)

	subs := Subscribe(a)
	t.Cleanup(subs.Close)

	m := NewModel(a, subs)
	m = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, a
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		m = update(m, keyMsg(k))
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func titles(m Model) []string {
	var out []string
	for _, r := range m.visible(m.Tab) {
		out = append(out, r.Item.GetTitle())
	}
	return out
}

func TestTabNavigationWraps(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())
	assert.Equal(t, m.Tab, TabSkills)

	m = press(m, "tab")
	assert.Equal(t, m.Tab, TabProjects)

	m = press(m, "shift+tab", "shift+tab")
	assert.Equal(t, m.Tab, TabCart)

	m = press(m, "tab")
	assert.Equal(t, m.Tab, TabSkills)
}

func TestCursorStaysInBounds(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())

	m = press(m, "k")
	assert.Equal(t, m.cursors[TabSkills], 0)

	m = press(m, "j", "j", "j", "j")
	assert.Equal(t, m.cursors[TabSkills], 2)

	m = press(m, "g")
	assert.Equal(t, m.cursors[TabSkills], 0)
}

func TestLocalFilter(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())

	m = press(m, "/", "r", "u")
	assert.Equal(t, m.filter.Visible(), true)
	assert.Equal(t, titles(m), []string{"Rust"})

	// enter keeps the filter applied and returns to the list
	m = press(m, "enter")
	assert.Equal(t, m.filter.Visible(), false)
	assert.Equal(t, titles(m), []string{"Rust"})

	m = press(m, "esc")
	assert.Equal(t, titles(m), []string{"Go", "React", "Rust"})
}

func TestTagFilter(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())

	m = press(m, "/", "#", "b", "a", "c", "k")
	assert.Equal(t, titles(m), []string{"Go", "Rust"})
}

func TestIncreaseSkillLevelIsOptimistic(t *testing.T) {
	release := make(chan struct{})
	r := chi.NewRouter()
	r.Put("/api/skills/{id}", func(w http.ResponseWriter, req *http.Request) {
		<-release
		body, _ := io.ReadAll(req.Body)
		w.Write(body)
	})
	m, a := newTestModel(t, r)

	m = press(m, "j") // React, level 60
	next, cmd := m.Update(keyMsg("+"))
	m = next.(Model)
	assert.NotEqual(t, cmd, nil)

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	// The cache changes before the server answers
	level := func() int {
		skills, _ := a.Skills.Cached()
		return skills[1].Level
	}
	deadline := time.Now().Add(2 * time.Second)
	for level() != 65 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, level(), 65)
	assert.Equal(t, a.Skills.Pending("2"), true)

	close(release)
	msg := (<-done).(MutationDoneMsg)
	assert.Equal(t, msg.Err, nil)
	assert.Equal(t, msg.ID, "2")

	m = update(m, msg)
	skill, ok := m.items[TabSkills][1].(domain.Skill)
	assert.Equal(t, ok, true)
	assert.Equal(t, skill.Level, 65)
}

func TestRepeatedIncreasesAreSentInOrder(t *testing.T) {
	var mu sync.Mutex
	var sent []int
	r := chi.NewRouter()
	r.Put("/api/skills/{id}", func(w http.ResponseWriter, req *http.Request) {
		var s domain.Skill
		json.NewDecoder(req.Body).Decode(&s)
		mu.Lock()
		sent = append(sent, s.Level)
		mu.Unlock()
		s.ID = domain.ID(chi.URLParam(req, "id"))
		json.NewEncoder(w).Encode(s)
	})
	m, a := newTestModel(t, r)

	m = press(m, "j") // React, level 60
	next, first := m.Update(keyMsg("+"))
	m = next.(Model)
	next, second := m.Update(keyMsg("+"))
	m = next.(Model)
	assert.NotEqual(t, first, nil)
	assert.Equal(t, second, nil)
	assert.Equal(t, strings.Contains(m.View(), " 70%"), true)

	next, followUp := m.Update(first())
	m = next.(Model)
	assert.NotEqual(t, followUp, nil)

	next, last := m.Update(followUp())
	m = next.(Model)
	assert.Equal(t, last, nil)

	mu.Lock()
	assert.Equal(t, sent, []int{65, 70})
	mu.Unlock()

	skills, _ := a.Skills.Cached()
	assert.Equal(t, skills[1].Level, 70)
	assert.Equal(t, len(m.levels), 0)
}

func TestFailedIncreaseDropsQueuedPress(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Put("/api/skills/{id}", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "level locked"})
	})
	m, a := newTestModel(t, r)

	m = press(m, "j")
	next, first := m.Update(keyMsg("+"))
	m = next.(Model)
	m = press(m, "+")

	next, followUp := m.Update(first())
	m = next.(Model)
	assert.Equal(t, followUp, nil)
	assert.Equal(t, calls.Load(), int32(1))

	skills, _ := a.Skills.Cached()
	assert.Equal(t, skills[1].Level, 60)
	assert.Equal(t, len(m.levels), 0)
}

func TestSkillLevelClampsAtMaximum(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())

	skill := m.items[TabSkills][0].(domain.Skill)
	skill.Level = 100
	m.items[TabSkills][0] = skill

	_, cmd := m.Update(keyMsg("+"))
	assert.Equal(t, cmd, nil)
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())

	m = press(m, "d")
	assert.Equal(t, m.State, StateConfirmDelete)
	assert.Equal(t, m.pendingDelete.GetID(), "1")
	assert.Equal(t, strings.Contains(m.View(), "Delete Go?"), true)

	m = press(m, "n")
	assert.Equal(t, m.State, StateBrowsing)
	assert.Equal(t, m.pendingDelete, nil)
}

func TestActivitiesCannotBeDeleted(t *testing.T) {
	m, a := newTestModel(t, chi.NewRouter())
	err := cache.Set(a.Cache, domain.KeyActivities, []domain.Activity{{ID: "a1", Type: "code", Description: "Pushed"}})
	assert.Equal(t, err, nil)

	m = press(m, "tab", "tab", "tab")
	assert.Equal(t, m.Tab, TabActivities)
	m.refreshItems(TabActivities)

	m = press(m, "d")
	assert.Equal(t, m.State, StateBrowsing)
	current, ok := a.Toasts.Current()
	assert.Equal(t, ok, true)
	assert.Equal(t, current.Message, "Logged activities can't be removed")
}

func TestSharePostShowsServerMessage(t *testing.T) {
	var shared []string
	r := chi.NewRouter()
	r.Post("/api/posts/{id}/share/{network}", func(w http.ResponseWriter, req *http.Request) {
		shared = append(shared, chi.URLParam(req, "id")+" "+chi.URLParam(req, "network"))
		if chi.URLParam(req, "network") == "facebook" {
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": "Facebook is unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Shared to LinkedIn"})
	})
	m, a := newTestModel(t, r)
	err := cache.Set(a.Cache, domain.KeyPosts, []domain.Post{{ID: "12", Slug: "hello", Title: "Hello", Content: "x"}})
	assert.Equal(t, err, nil)

	m = press(m, "tab", "tab")
	assert.Equal(t, m.Tab, TabPosts)
	m.refreshItems(TabPosts)

	_, cmd := m.Update(keyMsg("i"))
	assert.NotEqual(t, cmd, nil)
	m = update(m, cmd())
	current, _ := a.Toasts.Current()
	assert.Equal(t, current.Level, domain.NoticeSuccess)
	assert.Equal(t, current.Message, "Shared to LinkedIn")

	_, cmd = m.Update(keyMsg("f"))
	m = update(m, cmd())
	current, _ = a.Toasts.Current()
	assert.Equal(t, current.Level, domain.NoticeError)
	assert.Equal(t, current.Message, "Facebook is unavailable")
	assert.Equal(t, shared, []string{"12 linkedin", "12 facebook"})

	// Only posts can be shared
	m = press(m, "shift+tab")
	_, cmd = m.Update(keyMsg("i"))
	assert.Equal(t, cmd, nil)
}

func TestCartKeys(t *testing.T) {
	m, a := newTestModel(t, chi.NewRouter())

	m = press(m, "shift+tab")
	assert.Equal(t, m.Tab, TabCart)

	m = press(m, "enter")
	assert.Equal(t, a.Cart.Count(), 1)

	m = press(m, "+", "+")
	assert.Equal(t, a.Cart.Count(), 3)
	assert.Equal(t, a.Cart.FormattedTotal(), "14.97")
	assert.Equal(t, strings.Contains(m.View(), "total $14.97"), true)

	m = press(m, "-")
	assert.Equal(t, a.Cart.Count(), 2)

	m = press(m, "d")
	assert.Equal(t, a.Cart.Count(), 0)
	assert.Equal(t, m.State, StateBrowsing)
}

func TestPanicShowsCrashScreenAndReloads(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())
	m = press(m, "tab")

	m = update(m, PanicMsg{Value: "boom"})
	assert.Equal(t, m.State, StateCrashed)
	view := m.View()
	assert.Equal(t, strings.Contains(view, "Something went wrong"), true)
	assert.Equal(t, strings.Contains(view, "boom"), true)

	// Other keys are ignored on the crash screen
	m = press(m, "tab")
	assert.Equal(t, m.State, StateCrashed)

	next, cmd := m.Update(keyMsg("r"))
	m = next.(Model)
	assert.NotEqual(t, cmd, nil)
	assert.Equal(t, m.State, StateBrowsing)
	assert.Equal(t, m.Tab, TabSkills)
	assert.Equal(t, m.Width, 100)
}

func TestSafeRecoversPanics(t *testing.T) {
	cmd := safe(func() tea.Msg { panic("kaboom") })
	msg, ok := cmd().(PanicMsg)
	assert.Equal(t, ok, true)
	assert.Equal(t, msg.Value, "kaboom")
	assert.Equal(t, strings.Contains(msg.Stack, "goroutine"), true)

	assert.Equal(t, safe(nil) == nil, true)
}

func TestAuthRequiredOpensLoginForm(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())

	m = update(m, AuthRequiredMsg{})
	assert.Equal(t, m.State, StateAuthRequired)
	assert.Equal(t, strings.Contains(m.View(), "session expired"), true)

	m = press(m, "esc")
	assert.Equal(t, m.State, StateBrowsing)
}

func TestLoginFormShowsValidationErrors(t *testing.T) {
	m, _ := newTestModel(t, chi.NewRouter())
	m = update(m, AuthRequiredMsg{})

	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)
	assert.Equal(t, m.login.submitting, true)

	m = update(m, cmd())
	assert.Equal(t, m.State, StateAuthRequired)
	assert.Equal(t, m.login.submitting, false)
	assert.Equal(t, m.login.fieldErrs["emailOrUsername"], "Email or username is required")
	assert.Equal(t, m.login.fieldErrs["password"], "Password is required")
}

func TestLoginSuccessReturnsToBrowsing(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token": "opaque", "user": map[string]any{"id": 1, "name": "Ada"}})
	})
	m, a := newTestModel(t, r)
	m = update(m, AuthRequiredMsg{})

	m = press(m, "a", "d", "a", "tab", "p", "w")
	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)

	m = update(m, cmd())
	assert.Equal(t, m.State, StateBrowsing)
	assert.Equal(t, m.user.Name, "Ada")
	assert.Equal(t, a.Session.Token(), "opaque")
	assert.Equal(t, strings.Contains(m.View(), "Ada"), true)
}

func TestCacheEventRefreshesRows(t *testing.T) {
	m, a := newTestModel(t, chi.NewRouter())

	err := cache.Set(a.Cache, domain.KeySkills, []domain.Skill{{ID: "9", Name: "Zig", Level: 10}})
	assert.Equal(t, err, nil)

	m = update(m, CacheEventMsg{Event: cache.Event{Key: domain.KeySkills, Kind: cache.EventSet}})
	assert.Equal(t, titles(m), []string{"Zig"})
}

func TestWindow(t *testing.T) {
	start, end := window(0, 5, 10)
	assert.Equal(t, start, 0)
	assert.Equal(t, end, 5)

	start, end = window(12, 20, 5)
	assert.Equal(t, start, 8)
	assert.Equal(t, end, 13)
}
