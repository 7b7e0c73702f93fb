package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/folio/internal/domain"
	"github.com/mmcdole/folio/internal/tui/styles"
)

const (
	fieldEmail = iota
	fieldPassword
)

// LoginForm collects credentials when the session is missing or rejected
type LoginForm struct {
	inputs     [2]textinput.Model
	focus      int
	reason     string
	err        string
	fieldErrs  map[string]string
	submitting bool
}

// NewLoginForm creates an empty login form
func NewLoginForm() LoginForm {
	email := textinput.New()
	email.Placeholder = "email or username"
	email.Prompt = "  "
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "  "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	return LoginForm{inputs: [2]textinput.Model{email, password}}
}

// Open resets the form and focuses the first field
func (f *LoginForm) Open(reason string) {
	f.reason = reason
	f.err = ""
	f.fieldErrs = nil
	f.submitting = false
	f.inputs[fieldPassword].SetValue("")
	f.setFocus(fieldEmail)
}

func (f *LoginForm) setFocus(i int) {
	f.focus = i
	for j := range f.inputs {
		if j == i {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

// NextField moves focus to the other field
func (f *LoginForm) NextField() {
	f.setFocus((f.focus + 1) % len(f.inputs))
}

// Credentials returns the entered values
func (f LoginForm) Credentials() (emailOrUsername, password string) {
	return strings.TrimSpace(f.inputs[fieldEmail].Value()), f.inputs[fieldPassword].Value()
}

// Submitting marks the form as waiting on the server
func (f *LoginForm) Submitting() {
	f.submitting = true
	f.err = ""
	f.fieldErrs = nil
}

// Fail shows err on the form. Validation failures are shown per field.
func (f *LoginForm) Fail(err error) {
	f.submitting = false
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		f.fieldErrs = make(map[string]string, len(verrs))
		for _, v := range verrs {
			f.fieldErrs[v.Field] = v.Message
		}
		return
	}
	f.err = domain.UserMessage(err)
}

// Update routes a message to the focused field
func (f LoginForm) Update(msg tea.Msg) (LoginForm, tea.Cmd) {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

// View renders the form
func (f LoginForm) View() string {
	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render("Log in"))
	b.WriteString("\n")
	if f.reason != "" {
		b.WriteString(styles.SubtitleStyle.Render(f.reason))
		b.WriteString("\n\n")
	}

	labels := [2]string{"Email or username", "Password"}
	fields := [2]string{"emailOrUsername", "password"}
	for i, in := range f.inputs {
		label := labels[i]
		if i == f.focus {
			label = styles.AccentStyle.Render(label)
		} else {
			label = styles.DimStyle.Render(label)
		}
		b.WriteString(label + "\n")
		b.WriteString(in.View() + "\n")
		if msg, ok := f.fieldErrs[fields[i]]; ok {
			b.WriteString(styles.ErrorStyle.Render("  "+msg) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case f.submitting:
		b.WriteString(styles.PendingStyle.Render("Logging in..."))
	case f.err != "":
		b.WriteString(styles.ErrorStyle.Render(f.err))
	default:
		b.WriteString(styles.DimStyle.Render("tab next field · enter submit · esc cancel"))
	}
	return styles.ModalStyle.Render(b.String())
}
