package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aussiebroadwan/backoffice/internal/console/domain"
	"github.com/aussiebroadwan/backoffice/internal/console/shell"
)

// mockView renders a static page from the bundled sample data.
func mockView(r shell.Route) string {
	data, err := shell.MockTable(r.Path)
	if err != nil {
		return titleStyle.Render(r.Title) + "\n\n" + errorStyle.Render(err.Error())
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(data.Columns...).
		Rows(data.Rows...)

	title := data.Title
	if title == "" {
		title = r.Title
	}
	return titleStyle.Render(title) + "\n" + helpStyle.Render("sample data") + "\n\n" + t.Render()
}

func profileView(s domain.Session) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Profile") + "\n\n")

	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%-14s %s\n", label, value)
	}
	field("Display name", s.DisplayName)
	field("Username", s.Username)
	field("Email", s.Email)
	field("Role", s.Role)
	field("User ID", s.UserID)

	twoFactor := "not configured"
	if u := s.User(); u != nil {
		if c, ok := u.ActiveTwoFactor(); ok {
			twoFactor = string(c.Type)
		}
	}
	field("Two-factor", twoFactor)

	b.WriteString("\n" + helpStyle.Render("Edit with `backoffice profile` and `backoffice password`."))
	return panelStyle.Render(b.String())
}

func settingsView(collapsed bool) string {
	state := "expanded"
	if collapsed {
		state = "collapsed"
	}
	return panelStyle.Render(titleStyle.Render("Settings") + "\n\n" +
		fmt.Sprintf("Sidebar  %s  %s", codeStyle.Render(state), helpStyle.Render("(b to toggle)")))
}
