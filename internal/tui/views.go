package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/search"
	"github.com/mmcdole/folio/internal/toast"
	"github.com/mmcdole/folio/internal/tui/styles"
)

const progressWidth = 20

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	switch m.State {
	case StateCrashed:
		return m.place(RenderCrash(m.crash, m.Width))
	case StateAuthRequired:
		return m.place(m.login.View())
	case StateConfirmDelete:
		return m.place(RenderConfirmDelete(m.pendingDelete))
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := max(1, m.Height-lipgloss.Height(header)-lipgloss.Height(footer))
	body := m.renderBody(bodyHeight)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) place(content string) string {
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, content)
}

// renderHeader renders the title line and the tab bar
func (m Model) renderHeader() string {
	account := styles.DimStyle.Render("not logged in")
	if m.user != nil {
		account = styles.SubtitleStyle.Render(displayName(*m.user))
	}
	title := styles.TitleStyle.Render("folio")
	gap := max(1, m.Width-lipgloss.Width(title)-lipgloss.Width(account))
	top := title + strings.Repeat(" ", gap) + account

	tabs := make([]string, 0, tabCount)
	for t := range tabCount {
		label := t.String()
		if t == TabCart {
			if n := m.app.Cart.Count(); n > 0 {
				label = fmt.Sprintf("%s (%d)", label, n)
			}
		}
		if t == m.Tab {
			tabs = append(tabs, styles.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(label))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, lipgloss.JoinHorizontal(lipgloss.Top, tabs...), "")
}

// renderBody renders the rows of the current tab
func (m Model) renderBody(height int) string {
	t := m.Tab
	var lines []string

	if t == TabPosts && m.searching {
		lines = append(lines, styles.AccentStyle.Render(fmt.Sprintf("Search results for %q", m.searchQuery))+
			styles.DimStyle.Render("  esc to clear"))
		height--
	}
	if t == TabCart {
		height -= 2
	}

	rows := m.visible(t)
	switch {
	case m.errs[t] != "":
		lines = append(lines, styles.ErrorStyle.Render(m.errs[t]), styles.DimStyle.Render("press r to retry"))
	case len(rows) == 0 && m.loading[t]:
		lines = append(lines, styles.DimStyle.Render(styles.SpinnerFrames[m.spinnerFrame%len(styles.SpinnerFrames)]+" Loading..."))
	case len(rows) == 0 && m.filter.Query() != "":
		lines = append(lines, styles.DimStyle.Render("No matches"))
	case len(rows) == 0:
		lines = append(lines, styles.DimStyle.Render("Nothing here yet"))
	default:
		start, end := window(m.cursors[t], len(rows), height)
		for i := start; i < end; i++ {
			lines = append(lines, m.renderRow(t, rows[i], i == m.cursors[t]))
		}
	}

	if t == TabCart {
		lines = append(lines, "", m.renderCartSummary())
	}

	return lipgloss.NewStyle().Height(max(1, height)).Render(strings.Join(lines, "\n"))
}

// window returns the slice of rows that keeps the cursor on screen
func window(cursor, total, height int) (int, int) {
	if height <= 0 || total <= height {
		return 0, total
	}
	start := max(0, cursor-height+1)
	return start, min(total, start+height)
}

// renderRow renders one list row with its type-specific detail column
func (m Model) renderRow(t Tab, r search.Result[domain.ListItem], selected bool) string {
	var detail string
	switch v := r.Item.(type) {
	case domain.Skill:
		level := v.Level
		if e, ok := m.levels[v.GetID()]; ok {
			level = e.target
		}
		detail = styles.RenderProgressBar(level, progressWidth) + fmt.Sprintf(" %3d%%", level)
	case domain.Product:
		detail = "$" + v.FormattedPrice()
		if q := m.quantity(v.ID); q > 0 {
			detail += styles.AccentStyle.Render(fmt.Sprintf("  ×%d", q))
		}
	case domain.Activity:
		detail = v.Type
		if !v.CreatedAt.IsZero() {
			detail += " · " + v.CreatedAt.Format("Jan 2")
		}
	default:
		detail = styles.DimStyle.Render(r.Item.GetDescription())
	}

	marker := "  "
	if m.pending(t, r.Item.GetID()) {
		marker = styles.PendingStyle.Render(styles.SpinnerFrames[m.spinnerFrame%len(styles.SpinnerFrames)]) + " "
	}

	detailWidth := lipgloss.Width(detail)
	titleWidth := max(10, m.Width-detailWidth-8)
	title := styles.Truncate(r.Item.GetTitle(), titleWidth)
	title = highlightMatches(title, r.MatchedIndexes) + strings.Repeat(" ", max(0, titleWidth-lipgloss.Width(title)))

	row := marker + title + "  " + detail
	if selected {
		return styles.SelectedItemStyle.Width(m.Width).Render(row)
	}
	return styles.NormalItemStyle.Render(row)
}

// highlightMatches styles the matched rune positions of text
func highlightMatches(text string, matchedIndexes []int) string {
	if len(matchedIndexes) == 0 {
		return text
	}

	matchSet := make(map[int]bool, len(matchedIndexes))
	for _, idx := range matchedIndexes {
		matchSet[idx] = true
	}

	var b strings.Builder
	for i, r := range []rune(text) {
		if matchSet[i] {
			b.WriteString(styles.MatchHighlightStyle.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// renderCartSummary renders the cart count and total
func (m Model) renderCartSummary() string {
	lines := m.app.Cart.Items()
	if len(lines) == 0 {
		return styles.DimStyle.Render("Cart is empty · enter to add")
	}
	return styles.TitleStyle.Render(fmt.Sprintf("%d items · total $%s", m.app.Cart.Count(), m.app.Cart.FormattedTotal())) +
		styles.DimStyle.Render("  +/- quantity · d remove · X empty")
}

// renderFooter renders the filter bar or help, then the toast line
func (m Model) renderFooter() string {
	var bottom string
	switch {
	case m.filter.Visible():
		bottom = m.filter.View(m.Width)
	case m.filter.Query() != "":
		bottom = styles.FilterPromptStyle.Render("/ ") + m.filter.Query() + styles.DimStyle.Render("  esc to clear")
	default:
		m.help.ShowAll = m.ShowHelp
		bottom = m.help.View(Keys)
	}

	status := ""
	if t, ok := m.app.Toasts.Current(); ok {
		status = RenderToast(t, m.Width)
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, bottom)
}

// RenderToast renders a toast in its level's color
func RenderToast(t toast.Toast, width int) string {
	msg := styles.Truncate(t.Message, max(10, width-2))
	switch t.Level {
	case domain.NoticeSuccess:
		return styles.ToastSuccessStyle.Render(msg)
	case domain.NoticeError:
		return styles.ToastErrorStyle.Render(msg)
	default:
		return styles.ToastInfoStyle.Render(msg)
	}
}

// RenderConfirmDelete renders the delete confirmation modal
func RenderConfirmDelete(item domain.ListItem) string {
	name := ""
	if item != nil {
		name = item.GetTitle()
	}
	body := styles.ModalTitleStyle.Render("Delete "+styles.Truncate(name, 40)+"?") + "\n" +
		styles.DimStyle.Render("y confirm · n cancel")
	return styles.ModalStyle.Render(body)
}

// RenderCrash renders the fallback screen shown after a recovered panic
func RenderCrash(reason string, width int) string {
	body := styles.ModalTitleStyle.Render("Something went wrong") + "\n" +
		styles.ErrorStyle.Render(styles.Truncate(reason, max(20, width-10))) + "\n\n" +
		styles.SubtitleStyle.Render("Your cart and cached data are safe.") + "\n" +
		styles.DimStyle.Render("r reload · q quit")
	return styles.CrashStyle.Render(body)
}
