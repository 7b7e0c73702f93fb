package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/app"
)

// maxCrashRestarts bounds how often a crashing UI is brought back
const maxCrashRestarts = 3

// Run starts the TUI and blocks until the user quits. A panic that escapes
// the model restarts the program on the crash screen, from which the user
// can reload.
func Run(a *app.App) error {
	subs := Subscribe(a)
	defer subs.Close()

	model := NewModel(a, subs)
	for restarts := 0; ; restarts++ {
		p := tea.NewProgram(model, tea.WithAltScreen())
		_, err := p.Run()
		if err == nil {
			return nil
		}
		if !errors.Is(err, tea.ErrProgramPanic) || restarts >= maxCrashRestarts {
			return fmt.Errorf("ui exited: %w", err)
		}

		a.Logger.Error("ui panicked, restarting", "error", err, "restarts", restarts+1)
		model = NewCrashedModel(a, subs, err.Error())
	}
}
