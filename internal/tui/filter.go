package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/folio/internal/tui/styles"
)

// inputMode is what the bottom input line is collecting
type inputMode int

const (
	inputFilter inputMode = iota // Local fuzzy filter over the current tab
	inputSearch                  // Server-side post search
)

// FilterBar is the single-line input used for the local filter and the
// post search. The filter narrows the list as the user types; the search
// is submitted on enter.
type FilterBar struct {
	input   textinput.Model
	mode    inputMode
	visible bool
}

// NewFilterBar creates a hidden filter bar
func NewFilterBar() FilterBar {
	ti := textinput.New()
	ti.CharLimit = 100
	ti.Width = 40
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return FilterBar{input: ti}
}

// Show focuses the bar in the given mode, keeping any filter text
func (f *FilterBar) Show(mode inputMode) {
	f.visible = true
	f.mode = mode
	switch mode {
	case inputSearch:
		f.input.Prompt = "search posts: "
		f.input.Placeholder = "title, content or tag..."
		f.input.SetValue("")
	default:
		f.input.Prompt = "/ "
		f.input.Placeholder = "filter, or #tag"
	}
	f.input.CursorEnd()
	f.input.Focus()
}

// Hide blurs the bar. The local filter stays applied.
func (f *FilterBar) Hide() {
	f.visible = false
	f.input.Blur()
}

// Clear hides the bar and drops the query
func (f *FilterBar) Clear() {
	f.Hide()
	f.input.SetValue("")
}

// Visible reports whether the bar has focus
func (f FilterBar) Visible() bool {
	return f.visible
}

// Mode returns what the bar is collecting
func (f FilterBar) Mode() inputMode {
	return f.mode
}

// Query returns the local filter query. It is empty while the bar is
// collecting a post search.
func (f FilterBar) Query() string {
	if f.mode != inputFilter {
		return ""
	}
	return f.input.Value()
}

// Value returns the raw input text
func (f FilterBar) Value() string {
	return f.input.Value()
}

// Update routes a message to the text input
func (f FilterBar) Update(msg tea.Msg) (FilterBar, tea.Cmd) {
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the bar
func (f FilterBar) View(width int) string {
	f.input.Width = max(10, width-len(f.input.Prompt)-2)
	return f.input.View()
}
