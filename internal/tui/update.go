package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/mutation"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case PanicMsg:
		m.app.Logger.Error("recovered panic", "panic", msg.Value, "stack", msg.Stack)
		m.State = StateCrashed
		m.crash = panicText(msg.Value)
		return m, nil

	case TickMsg:
		m.spinnerFrame++
		return m, TickCmd(tickInterval)

	case CollectionLoadedMsg:
		if t, ok := tabFor(msg.Key); ok {
			m.loading[t] = false
			m.errs[t] = ""
			m.refreshItems(t)
		}
		return m, nil

	case CacheEventMsg:
		if t, ok := tabFor(msg.Event.Key); ok {
			m.refreshItems(t)
		}
		return m, WaitForCacheEventCmd(m.subs.events)

	case MutationDoneMsg:
		if t, ok := tabFor(msg.Key); ok {
			m.refreshItems(t)
		}
		if msg.Err != nil {
			m.app.Logger.Debug("mutation failed", "key", msg.Key, "op", msg.Op, "id", msg.ID, "error", msg.Err)
		}
		if msg.Key == domain.KeySkills && msg.Op == mutation.OpUpdate {
			return m, m.levelDone(msg)
		}
		return m, nil

	case PostSharedMsg:
		if msg.Err != nil {
			m.app.Logger.Error("share failed", "slug", msg.Slug, "network", msg.Network, "error", msg.Err)
			m.app.Toasts.Notify(domain.NoticeError, domain.UserMessage(msg.Err))
			return m, nil
		}
		m.app.Toasts.Notify(domain.NoticeSuccess, msg.Message)
		return m, nil

	case ToastMsg:
		return m, WaitForToastCmd(m.subs.toasts)

	case AuthRequiredMsg:
		if m.State != StateCrashed {
			m.requireLogin("Your session expired. Log in again to keep editing.")
		}
		return m, WaitForAuthExpiredCmd(m.subs.authExpired)

	case ErrMsg:
		if t, ok := tabFor(msg.Key); ok {
			m.loading[t] = false
			m.errs[t] = domain.UserMessage(msg.Err)
		}
		m.app.Logger.Error(msg.Context, "error", msg.Err)
		return m, nil

	case SessionVerifiedMsg:
		if msg.Err == nil {
			m.user = &msg.User
			return m, nil
		}
		if errors.Is(msg.Err, domain.ErrUnauthorized) {
			m.user = nil
		}
		return m, nil

	case LoginResultMsg:
		if msg.Err != nil {
			m.login.Fail(msg.Err)
			return m, nil
		}
		m.user = &msg.User
		m.State = StateBrowsing
		m.app.Toasts.Notify(domain.NoticeSuccess, "Logged in as "+displayName(msg.User))
		return m, tea.Batch(m.loadAll()...)

	case PostsSearchedMsg:
		if !m.searching || msg.Query != m.searchQuery {
			return m, nil
		}
		m.loading[TabPosts] = false
		if msg.Err != nil {
			m.errs[TabPosts] = domain.UserMessage(msg.Err)
			return m, nil
		}
		m.errs[TabPosts] = ""
		m.searchResults = msg.Posts
		m.searchMore = m.app.Feed.State().HasMore
		m.cursors[TabPosts] = 0
		return m, nil

	case PostsPageMsg:
		m.loading[TabPosts] = false
		if msg.Err != nil {
			m.errs[TabPosts] = domain.UserMessage(msg.Err)
			return m, nil
		}
		if m.searching {
			st := m.app.Feed.State()
			m.searchResults = st.Posts
			m.searchMore = st.HasMore
		}
		return m, nil
	}

	// Route remaining messages (cursor blink) to focused inputs
	var cmd tea.Cmd
	switch {
	case m.State == StateAuthRequired:
		m.login, cmd = m.login.Update(msg)
	case m.filter.Visible():
		m.filter, cmd = m.filter.Update(msg)
	}
	return m, cmd
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
