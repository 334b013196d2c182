package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type loginModel struct {
	identifier textinput.Model
	password   textinput.Model
	focus      int
	busy       bool
	err        string
}

// newLoginModel prefills the identifier with the last known email.
func newLoginModel(email string) loginModel {
	id := textinput.New()
	id.Placeholder = "email or username"
	id.CharLimit = 254
	id.Width = 40
	id.SetValue(email)

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.CharLimit = 128
	pw.Width = 40
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	m := loginModel{identifier: id, password: pw}
	if email != "" {
		m.focus = 1
		m.password.Focus()
	} else {
		m.identifier.Focus()
	}
	return m
}

func (m loginModel) blink() tea.Cmd {
	return textinput.Blink
}

// update handles one key. The second result is true when the form should
// be submitted.
func (m loginModel) update(msg tea.KeyMsg) (loginModel, bool) {
	if m.busy {
		return m, false
	}

	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.focus = 1 - m.focus
		if m.focus == 0 {
			m.password.Blur()
			m.identifier.Focus()
		} else {
			m.identifier.Blur()
			m.password.Focus()
		}
		return m, false

	case "enter":
		switch {
		case strings.TrimSpace(m.identifier.Value()) == "":
			m.err = "Enter your email or username"
			return m, false
		case m.password.Value() == "":
			m.err = "Enter your password"
			return m, false
		}
		m.err = ""
		return m, true
	}

	m.err = ""
	if m.focus == 0 {
		m.identifier, _ = m.identifier.Update(msg)
	} else {
		m.password, _ = m.password.Update(msg)
	}
	return m, false
}

func (m loginModel) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sign in") + "\n\n")
	b.WriteString("Email or username\n")
	b.WriteString(m.identifier.View() + "\n\n")
	b.WriteString("Password\n")
	b.WriteString(m.password.View() + "\n")
	if m.busy {
		b.WriteString("\n" + helpStyle.Render("Signing in…") + "\n")
	}
	if m.err != "" {
		b.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
