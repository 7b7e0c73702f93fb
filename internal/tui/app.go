package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/app"
	"github.com/mmcdole/folio/internal/cache"
	"github.com/mmcdole/folio/internal/cart"
	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/search"
	"github.com/mmcdole/folio/internal/toast"
)

const tickInterval = 250 * time.Millisecond

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateAuthRequired
	StateConfirmDelete
	StateCrashed
)

// Tab is one top-level view
type Tab int

const (
	TabSkills Tab = iota
	TabProjects
	TabPosts
	TabActivities
	TabCart
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabSkills:
		return "Skills"
	case TabProjects:
		return "Projects"
	case TabPosts:
		return "Posts"
	case TabActivities:
		return "Activity"
	case TabCart:
		return "Shop"
	default:
		return "?"
	}
}

// tabFor maps a cached collection to the tab that shows it
func tabFor(key domain.ResourceKey) (Tab, bool) {
	switch key {
	case domain.KeySkills:
		return TabSkills, true
	case domain.KeyProjects:
		return TabProjects, true
	case domain.KeyPosts:
		return TabPosts, true
	case domain.KeyActivities:
		return TabActivities, true
	default:
		return 0, false
	}
}

// Subscriptions are the observer channels feeding the model. They outlive
// a model so that a reload after a crash does not subscribe twice.
type Subscriptions struct {
	events      chan cache.Event
	toasts      <-chan toast.Toast
	authExpired chan struct{}
	unsubscribe func()
}

// Subscribe attaches channels to the app's cache, toasts and session
func Subscribe(a *app.App) *Subscriptions {
	events := make(chan cache.Event, 64)
	observer := NewChannelObserver(events)
	authExpired := make(chan struct{}, 1)

	a.OnUnauthorized(func() { signal(authExpired) })
	return &Subscriptions{
		events:      events,
		toasts:      a.Toasts.Subscribe(),
		authExpired: authExpired,
		unsubscribe: a.Cache.Subscribe(observer.OnEvent),
	}
}

// Close detaches from the cache
func (s *Subscriptions) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Model is the main application model
type Model struct {
	app  *app.App
	subs *Subscriptions
	help help.Model

	// State
	State ApplicationState
	Tab   Tab
	user  *domain.User

	// Per-tab data
	cursors [tabCount]int
	items   [tabCount][]domain.ListItem
	loading [tabCount]bool
	errs    [tabCount]string

	// Input
	filter FilterBar
	login  LoginForm

	// Server-side post search
	searching     bool
	searchQuery   string
	searchResults []domain.Post
	searchMore    bool

	pendingDelete domain.ListItem
	crash         string

	// Level changes per skill id; one update in flight per skill
	levels map[string]levelEdit

	ShowHelp     bool
	spinnerFrame int
	Width        int
	Height       int
}

// NewModel creates a new application model
func NewModel(a *app.App, subs *Subscriptions) Model {
	m := Model{
		app:    a,
		subs:   subs,
		help:   help.New(),
		State:  StateBrowsing,
		filter: NewFilterBar(),
		login:  NewLoginForm(),
		levels: make(map[string]levelEdit),
	}
	for t := range tabCount {
		m.refreshItems(t)
	}
	if u, ok := a.Auth.User(); ok {
		m.user = &u
	}
	return m
}

// NewCrashedModel creates a model showing the crash screen for a panic
// that escaped the previous program
func NewCrashedModel(a *app.App, subs *Subscriptions, reason string) Model {
	m := NewModel(a, subs)
	m.State = StateCrashed
	m.crash = reason
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		WaitForCacheEventCmd(m.subs.events),
		WaitForToastCmd(m.subs.toasts),
		WaitForAuthExpiredCmd(m.subs.authExpired),
		TickCmd(tickInterval),
	}
	if m.State == StateCrashed {
		return tea.Batch(cmds...)
	}

	if m.app.Auth.LoggedIn() {
		cmds = append(cmds, VerifySessionCmd(m.app.Auth))
	}
	return tea.Batch(append(cmds, m.loadAll()...)...)
}

// loadAll loads every collection, cache first
func (m Model) loadAll() []tea.Cmd {
	return []tea.Cmd{
		LoadCollectionCmd(m.app.Skills),
		LoadCollectionCmd(m.app.Projects),
		LoadCollectionCmd(m.app.Posts),
		LoadCollectionCmd(m.app.Activities),
	}
}

// reload discards all UI state, keeping the app and subscriptions
func (m Model) reload() (tea.Model, tea.Cmd) {
	m.app.Logger.Info("reloading ui")
	fresh := NewModel(m.app, m.subs)
	fresh.Width, fresh.Height = m.Width, m.Height
	for t := range TabCart {
		fresh.loading[t] = true
	}
	return fresh, tea.Batch(fresh.loadAll()...)
}

// refreshItems rereads a tab's rows from its source
func (m *Model) refreshItems(t Tab) {
	switch t {
	case TabSkills:
		items, _ := m.app.Skills.Cached()
		m.items[t] = listItems(items)
	case TabProjects:
		items, _ := m.app.Projects.Cached()
		m.items[t] = listItems(items)
	case TabPosts:
		items, _ := m.app.Posts.Cached()
		m.items[t] = listItems(items)
	case TabActivities:
		items, _ := m.app.Activities.Cached()
		m.items[t] = listItems(items)
	case TabCart:
		m.items[t] = listItems(cart.Catalog())
	}
	m.clampCursor(t)
}

// visible returns the rows shown on a tab after the search and the local
// filter are applied
func (m Model) visible(t Tab) []search.Result[domain.ListItem] {
	rows := m.items[t]
	if t == TabPosts && m.searching {
		rows = listItems(m.searchResults)
	}
	return search.Filter(m.filter.Query(), rows)
}

// selected returns the row under the cursor on the current tab
func (m Model) selected() (domain.ListItem, bool) {
	rows := m.visible(m.Tab)
	c := m.cursors[m.Tab]
	if c < 0 || c >= len(rows) {
		return nil, false
	}
	return rows[c].Item, true
}

// pending reports whether a row has a mutation in flight
func (m Model) pending(t Tab, id string) bool {
	switch t {
	case TabSkills:
		return m.app.Skills.Pending(id)
	case TabProjects:
		return m.app.Projects.Pending(id)
	case TabPosts:
		return m.app.Posts.Pending(id)
	default:
		return false
	}
}

func (m *Model) clampCursor(t Tab) {
	n := len(m.visible(t))
	if m.cursors[t] >= n {
		m.cursors[t] = n - 1
	}
	if m.cursors[t] < 0 {
		m.cursors[t] = 0
	}
}

func (m *Model) moveCursor(delta int) {
	m.cursors[m.Tab] += delta
	m.clampCursor(m.Tab)
}

// requireLogin switches to the login form
func (m *Model) requireLogin(reason string) {
	m.user = nil
	m.State = StateAuthRequired
	m.login.Open(reason)
}

func listItems[T domain.ListItem](items []T) []domain.ListItem {
	out := make([]domain.ListItem, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
