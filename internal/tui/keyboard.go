package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/api"
	"github.com/mmcdole/folio/internal/domain"
)

// skillStep is how far +/- moves a skill level
const skillStep = 5

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle state-specific keys
	switch m.State {
	case StateCrashed:
		switch {
		case key.Matches(msg, Keys.Reload):
			return m.reload()
		case key.Matches(msg, Keys.Quit):
			return m, tea.Quit
		}
		return m, nil

	case StateAuthRequired:
		return m.handleLoginKey(msg)

	case StateConfirmDelete:
		switch {
		case key.Matches(msg, Keys.Confirm):
			item := m.pendingDelete
			m.pendingDelete = nil
			m.State = StateBrowsing
			return m, m.deleteCmd(item)
		case key.Matches(msg, Keys.Deny):
			m.pendingDelete = nil
			m.State = StateBrowsing
		}
		return m, nil
	}

	if m.filter.Visible() {
		return m.handleFilterKey(msg)
	}

	// Global keys
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.ShowHelp = !m.ShowHelp
		return m, nil

	case key.Matches(msg, Keys.Escape):
		switch {
		case m.ShowHelp:
			m.ShowHelp = false
		case m.filter.Query() != "":
			m.filter.Clear()
			m.clampCursor(m.Tab)
		case m.Tab == TabPosts && m.searching:
			m.endSearch()
		}
		return m, nil

	case key.Matches(msg, Keys.NextTab):
		m.switchTab((m.Tab + 1) % tabCount)
		return m, nil

	case key.Matches(msg, Keys.PrevTab):
		m.switchTab((m.Tab + tabCount - 1) % tabCount)
		return m, nil

	case key.Matches(msg, Keys.Up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, Keys.Down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, Keys.Home):
		m.cursors[m.Tab] = 0
		return m, nil

	case key.Matches(msg, Keys.End):
		m.cursors[m.Tab] = len(m.visible(m.Tab)) - 1
		m.clampCursor(m.Tab)
		return m, nil

	case key.Matches(msg, Keys.Filter):
		m.filter.Show(inputFilter)
		return m, nil

	case key.Matches(msg, Keys.ServerSearch) && m.Tab == TabPosts:
		m.filter.Clear()
		m.filter.Show(inputSearch)
		return m, nil

	case key.Matches(msg, Keys.MorePosts) && m.Tab == TabPosts && m.searching:
		if !m.searchMore {
			return m, nil
		}
		m.loading[TabPosts] = true
		return m, LoadMorePostsCmd(m.app.Feed)

	case key.Matches(msg, Keys.Refresh):
		return m.refresh()

	case key.Matches(msg, Keys.Logout):
		if m.user == nil && !m.app.Auth.LoggedIn() {
			m.requireLogin("")
			return m, nil
		}
		if err := m.app.Auth.Logout(); err != nil {
			m.app.Logger.Error("logout failed", "error", err)
			m.app.Toasts.Notify(domain.NoticeError, domain.UserMessage(err))
			return m, nil
		}
		m.user = nil
		m.app.Toasts.Notify(domain.NoticeInfo, "Logged out")
		return m, nil

	case key.Matches(msg, Keys.Delete):
		return m.confirmDelete()

	case key.Matches(msg, Keys.ShareLinked) && m.Tab == TabPosts:
		return m, m.shareCmd(api.ShareLinkedIn)

	case key.Matches(msg, Keys.ShareFB) && m.Tab == TabPosts:
		return m, m.shareCmd(api.ShareFacebook)

	case key.Matches(msg, Keys.Increase):
		return m.adjust(1)

	case key.Matches(msg, Keys.Decrease):
		return m.adjust(-1)

	case key.Matches(msg, Keys.AddToCart) && m.Tab == TabCart:
		if item, ok := m.selected(); ok {
			if p, ok := item.(domain.Product); ok {
				m.app.Cart.Add(p)
			}
		}
		return m, nil

	case key.Matches(msg, Keys.ClearCart) && m.Tab == TabCart:
		m.app.Cart.Clear()
		return m, nil
	}

	return m, nil
}

// handleFilterKey routes keys to the focused filter bar
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filter.Clear()
		m.clampCursor(m.Tab)
		return m, nil

	case tea.KeyEnter:
		if m.filter.Mode() == inputSearch {
			query := strings.TrimSpace(m.filter.Value())
			m.filter.Clear()
			if query == "" {
				m.endSearch()
				return m, nil
			}
			m.searching = true
			m.searchQuery = query
			m.searchResults = nil
			m.loading[TabPosts] = true
			m.cursors[TabPosts] = 0
			return m, SearchPostsCmd(m.app.Feed, query)
		}
		m.filter.Hide()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Mode() == inputFilter {
		m.cursors[m.Tab] = 0
	}
	return m, cmd
}

// handleLoginKey routes keys to the login form
func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.State = StateBrowsing
		return m, nil

	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.login.NextField()
		return m, nil

	case tea.KeyEnter:
		if m.login.submitting {
			return m, nil
		}
		email, password := m.login.Credentials()
		m.login.Submitting()
		return m, LoginCmd(m.app.Auth, email, password)
	}

	var cmd tea.Cmd
	m.login, cmd = m.login.Update(msg)
	return m, cmd
}

func (m *Model) switchTab(t Tab) {
	m.Tab = t
	m.filter.Clear()
	m.clampCursor(t)
}

func (m *Model) endSearch() {
	m.searching = false
	m.searchQuery = ""
	m.searchResults = nil
	m.searchMore = false
	m.loading[TabPosts] = false
	m.app.Feed.Reset()
	m.clampCursor(TabPosts)
}

// refresh refetches the current tab
func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.errs[m.Tab] = ""
	switch m.Tab {
	case TabSkills:
		m.loading[m.Tab] = true
		return m, RefreshCollectionCmd(m.app.Skills)
	case TabProjects:
		m.loading[m.Tab] = true
		return m, RefreshCollectionCmd(m.app.Projects)
	case TabPosts:
		m.loading[m.Tab] = true
		if m.searching {
			return m, SearchPostsCmd(m.app.Feed, m.searchQuery)
		}
		return m, RefreshCollectionCmd(m.app.Posts)
	case TabActivities:
		m.loading[m.Tab] = true
		return m, RefreshCollectionCmd(m.app.Activities)
	}
	return m, nil
}

// confirmDelete asks before deleting the selected row. Cart lines are
// removed without asking.
func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}

	switch m.Tab {
	case TabCart:
		m.app.Cart.Remove(item.GetID())
		return m, nil
	case TabActivities:
		m.app.Toasts.Notify(domain.NoticeInfo, "Logged activities can't be removed")
		return m, nil
	}

	m.pendingDelete = item
	m.State = StateConfirmDelete
	return m, nil
}

// deleteCmd starts the optimistic delete for a confirmed row
func (m Model) deleteCmd(item domain.ListItem) tea.Cmd {
	switch v := item.(type) {
	case domain.Skill:
		return DeleteCmd(m.app.Skills, v.GetID())
	case domain.Project:
		return DeleteCmd(m.app.Projects, v.GetID())
	case domain.Post:
		return DeleteCmd(m.app.Posts, v.GetID())
	}
	return nil
}

// shareCmd shares the selected post
func (m Model) shareCmd(network api.ShareNetwork) tea.Cmd {
	item, ok := m.selected()
	if !ok {
		return nil
	}
	post, ok := item.(domain.Post)
	if !ok {
		return nil
	}
	return SharePostCmd(m.app.Client, post, network)
}

// adjust moves the selected skill's level or the selected product's cart
// quantity by one step in direction dir
func (m Model) adjust(dir int) (tea.Model, tea.Cmd) {
	item, ok := m.selected()
	if !ok {
		return m, nil
	}

	switch v := item.(type) {
	case domain.Skill:
		return m, m.stepLevel(v, dir)

	case domain.Product:
		if dir > 0 {
			m.app.Cart.Add(v)
		} else {
			m.app.Cart.Increment(v.ID, -1)
		}
	}
	return m, nil
}

// levelEdit tracks the level a skill should end at while updates for it
// are in flight
type levelEdit struct {
	target   int
	inFlight bool
	queued   bool // target moved on after the in-flight update was sent
}

// stepLevel moves the skill's target level. Presses build on the target
// rather than on the cached row, and only one update per skill is sent at
// a time; later presses are folded into a single follow-up update.
func (m Model) stepLevel(s domain.Skill, dir int) tea.Cmd {
	e, ok := m.levels[s.GetID()]
	if !ok {
		e.target = s.Level
	}
	level := min(100, max(0, e.target+dir*skillStep))
	if level == e.target {
		return nil
	}
	e.target = level

	if e.inFlight {
		e.queued = true
		m.levels[s.GetID()] = e
		return nil
	}
	e.inFlight = true
	m.levels[s.GetID()] = e
	s.Level = level
	return UpdateCmd(m.app.Skills, s)
}

// levelDone sends the follow-up update for a skill once the previous one
// has finished. A failed update drops whatever was queued behind it.
func (m Model) levelDone(msg MutationDoneMsg) tea.Cmd {
	e, ok := m.levels[msg.ID]
	if !ok {
		return nil
	}
	if msg.Err != nil || !e.queued {
		delete(m.levels, msg.ID)
		return nil
	}

	skills, _ := m.app.Skills.Cached()
	for _, s := range skills {
		if s.GetID() != msg.ID {
			continue
		}
		if s.Level == e.target {
			break
		}
		m.levels[msg.ID] = levelEdit{target: e.target, inFlight: true}
		s.Level = e.target
		return UpdateCmd(m.app.Skills, s)
	}
	delete(m.levels, msg.ID)
	return nil
}

// quantity returns how many of a product are in the cart
func (m Model) quantity(productID string) int {
	for _, line := range m.app.Cart.Items() {
		if line.Product.ID == productID {
			return line.Quantity
		}
	}
	return 0
}
